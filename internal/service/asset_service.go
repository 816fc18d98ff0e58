package service

import (
	"context"
	stderrors "errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"gorm.io/gorm"

	"imagevault/internal/auth"
	"imagevault/internal/errors"
	"imagevault/internal/logging"
	"imagevault/internal/model"
	"imagevault/internal/repository"
	"imagevault/internal/storage"
)

// PageSize is the fixed number of assets per ListByDate page.
const PageSize = 2

// ImagePathPrefix is the route prefix of single-image retrieval.
const ImagePathPrefix = "/api/v1/image/"

// File is an uploaded image as received from the client.
type File struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AssetResponse describes a stored asset and where to fetch it.
type AssetResponse struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
	ImageLink string    `json:"imageLink"`
}

// AssetService is the owner-scoped image workflow. Every call identifies the
// caller from its bearer credential.
type AssetService interface {
	Fetch(ctx context.Context, bearer, filename string) (*model.Asset, error)
	Upload(ctx context.Context, bearer, origin string, file File) (*AssetResponse, error)
	UploadMany(ctx context.Context, bearer, origin string, files []File) ([]AssetResponse, error)
	ChangeImage(ctx context.Context, bearer, origin, filename string, file File) (*AssetResponse, error)
	Delete(ctx context.Context, bearer, filename string) (string, error)
	ListByDate(ctx context.Context, bearer, origin string, date time.Time, page int, order *string) ([]AssetResponse, error)
	SortAll(ctx context.Context, bearer, origin, order string) ([]AssetResponse, error)
}

type assetService struct {
	repo     repository.AssetRepository
	payloads storage.PayloadStore
	resolver identityResolver
	now      func() time.Time
	options
}

// NewAssetService creates a new asset service.
func NewAssetService(
	repo repository.AssetRepository,
	identities repository.IdentityRepository,
	tokens *auth.JWTService,
	payloads storage.PayloadStore,
	opts ...Option,
) AssetService {
	o := buildOptions(opts)
	return &assetService{
		repo:     repo,
		payloads: payloads,
		resolver: identityResolver{tokens: tokens, repo: identities, cache: o.cache},
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Second) },
		options:  o,
	}
}

func (s *assetService) Fetch(ctx context.Context, bearer, filename string) (*model.Asset, error) {
	owner, err := s.resolver.resolve(ctx, bearer)
	if err != nil {
		return nil, err
	}

	asset, err := s.findOwned(ctx, s.repo, owner.ID, filename)
	if err != nil {
		return nil, err
	}
	if err := s.payloads.Load(ctx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// Upload stores a new image for the caller.
func (s *assetService) Upload(ctx context.Context, bearer, origin string, file File) (resp *AssetResponse, err error) {
	defer func() { s.metrics.RecordAsset("upload", err) }()

	owner, err := s.resolver.resolve(ctx, bearer)
	if err != nil {
		return nil, err
	}
	if !isImage(file.ContentType) {
		return nil, errors.NotAnImage("File you are trying to upload is not an image")
	}
	exists, err := s.repo.ExistsByOwnerAndFilename(ctx, owner.ID, file.Filename)
	if err != nil {
		return nil, oops.With("filename", file.Filename).Wrapf(err, "check image existence")
	}
	if exists {
		return nil, errors.AlreadyExists("Image with that filename already exists")
	}

	asset := &model.Asset{ID: uuid.New(), OwnerID: owner.ID}
	s.fill(asset, file)
	if err := s.payloads.Put(ctx, asset); err != nil {
		return nil, err
	}
	// The existence check can lose a race; the unique index decides.
	if err := s.repo.Create(ctx, asset); err != nil {
		s.discardPayload(ctx, asset)
		return nil, err
	}

	s.metrics.ObserveUpload(asset.SizeBytes)
	s.record(ctx, owner.ID, model.ActivityUpload, asset.Filename)
	return s.response(asset, origin), nil
}

// UploadMany uploads files in order and stops at the first failure. The
// responses of files stored before the failure are returned with the error.
func (s *assetService) UploadMany(ctx context.Context, bearer, origin string, files []File) ([]AssetResponse, error) {
	responses := make([]AssetResponse, 0, len(files))
	for _, f := range files {
		resp, err := s.Upload(ctx, bearer, origin, f)
		if err != nil {
			return responses, err
		}
		responses = append(responses, *resp)
	}
	return responses, nil
}

// ChangeImage replaces the asset named filename with file, keeping its id.
// The collision check also matches the asset itself when file keeps the same
// name, so replacing an image under its own name reports ALREADY_EXISTS.
// The new payload is written beside the old one; the old payload is removed
// only after the row update commits, and the new one if it does not.
func (s *assetService) ChangeImage(ctx context.Context, bearer, origin, filename string, file File) (resp *AssetResponse, err error) {
	defer func() { s.metrics.RecordAsset("change", err) }()

	owner, err := s.resolver.resolve(ctx, bearer)
	if err != nil {
		return nil, err
	}

	var previous, changed *model.Asset
	err = s.repo.WithTransaction(ctx, func(ctx context.Context, repo repository.AssetRepository) error {
		asset, err := s.findOwned(ctx, repo, owner.ID, filename)
		if err != nil {
			return err
		}
		if !isImage(file.ContentType) {
			return errors.NotAnImage("File you are trying to upload is not an image")
		}
		taken, err := repo.ExistsByOwnerAndFilename(ctx, owner.ID, file.Filename)
		if err != nil {
			return oops.With("filename", file.Filename).Wrapf(err, "check image existence")
		}
		if taken {
			return errors.AlreadyExists("Image %s already exists", file.Filename)
		}

		old := *asset
		s.fill(asset, file)
		if err := s.payloads.Put(ctx, asset); err != nil {
			return err
		}
		changed = asset
		if err := repo.Update(ctx, asset); err != nil {
			return err
		}
		previous = &old
		return nil
	})
	if err != nil {
		if changed != nil {
			s.discardPayload(ctx, changed)
		}
		return nil, err
	}

	if previous.StorageKey != changed.StorageKey {
		s.discardPayload(ctx, previous)
	}
	s.record(ctx, owner.ID, model.ActivityChange, filename)
	return s.response(changed, origin), nil
}

// Delete removes the caller's asset and returns a confirmation message.
func (s *assetService) Delete(ctx context.Context, bearer, filename string) (msg string, err error) {
	defer func() { s.metrics.RecordAsset("delete", err) }()

	owner, err := s.resolver.resolve(ctx, bearer)
	if err != nil {
		return "", err
	}

	var deleted *model.Asset
	err = s.repo.WithTransaction(ctx, func(ctx context.Context, repo repository.AssetRepository) error {
		asset, err := s.findOwned(ctx, repo, owner.ID, filename)
		if err != nil {
			return err
		}
		if err := repo.DeleteByOwnerAndFilename(ctx, owner.ID, filename); err != nil {
			return oops.With("filename", filename).Wrapf(err, "delete image")
		}
		deleted = asset
		return nil
	})
	if err != nil {
		return "", err
	}

	s.discardPayload(ctx, deleted)
	s.record(ctx, owner.ID, model.ActivityDelete, filename)
	return filename + " image deleted", nil
}

// ListByDate pages through the caller's assets created at exactly date.
// A nil order keeps the store's natural order; any present value, empty
// included, must be asc or desc.
func (s *assetService) ListByDate(ctx context.Context, bearer, origin string, date time.Time, page int, order *string) ([]AssetResponse, error) {
	owner, err := s.resolver.resolve(ctx, bearer)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByOwnerAndCreatedAt(ctx, owner.ID, date)
	if err != nil {
		return nil, oops.With("date", date).Wrapf(err, "check images by date")
	}
	if !exists {
		return nil, errors.NotFound("No images found")
	}

	sortOrder := repository.SortNone
	if order != nil {
		if sortOrder, err = parseSortOrder(*order); err != nil {
			return nil, err
		}
	}
	if page < 0 {
		return nil, errors.InvalidPage("Page index must not be negative")
	}

	assets, err := s.repo.FindByOwnerAndCreatedAt(ctx, owner.ID, date, repository.Page{Index: page, Size: PageSize}, sortOrder)
	if err != nil {
		return nil, oops.With("date", date, "page", page).Wrapf(err, "list images by date")
	}
	return s.responses(assets, origin), nil
}

// SortAll returns every asset of the caller ordered by size.
func (s *assetService) SortAll(ctx context.Context, bearer, origin, order string) ([]AssetResponse, error) {
	owner, err := s.resolver.resolve(ctx, bearer)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByOwner(ctx, owner.ID)
	if err != nil {
		return nil, oops.Wrapf(err, "check images")
	}
	if !exists {
		return nil, errors.NotFound("No images found")
	}

	sortOrder, err := parseSortOrder(order)
	if err != nil {
		return nil, err
	}
	assets, err := s.repo.FindByOwner(ctx, owner.ID, sortOrder)
	if err != nil {
		return nil, oops.Wrapf(err, "list images")
	}
	return s.responses(assets, origin), nil
}

// ImageLink returns origin with its path replaced by the retrieval route of
// filename and any query or fragment removed.
func ImageLink(origin, filename string) string {
	u, err := url.Parse(origin)
	if err != nil {
		u = &url.URL{}
	}
	u.Path = ImagePathPrefix + filename
	u.RawPath = ""
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

func (s *assetService) findOwned(ctx context.Context, repo repository.AssetRepository, ownerID uuid.UUID, filename string) (*model.Asset, error) {
	asset, err := repo.FindByOwnerAndFilename(ctx, ownerID, filename)
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound("Image %s does not exist", filename)
	}
	if err != nil {
		return nil, oops.With("filename", filename).Wrapf(err, "load image")
	}
	return asset, nil
}

func (s *assetService) fill(asset *model.Asset, file File) {
	asset.Filename = file.Filename
	asset.MimeType = file.ContentType
	asset.Payload = file.Data
	asset.SizeBytes = int64(len(file.Data))
	asset.Checksum = storage.Checksum(file.Data)
	asset.CreatedAt = s.now()
}

func (s *assetService) discardPayload(ctx context.Context, asset *model.Asset) {
	if err := s.payloads.Delete(ctx, asset); err != nil {
		logging.LogError(ctx, s.logger, "discard image payload", err)
	}
}

func (s *assetService) record(ctx context.Context, ownerID uuid.UUID, action model.ActivityAction, filename string) {
	if s.activity != nil {
		s.activity.Record(ctx, ownerID, action, filename)
	}
}

func (s *assetService) response(asset *model.Asset, origin string) *AssetResponse {
	return &AssetResponse{
		Filename:  asset.Filename,
		Size:      asset.SizeBytes,
		CreatedAt: asset.CreatedAt,
		ImageLink: ImageLink(origin, asset.Filename),
	}
}

func (s *assetService) responses(assets []model.Asset, origin string) []AssetResponse {
	out := make([]AssetResponse, 0, len(assets))
	for i := range assets {
		out = append(out, *s.response(&assets[i], origin))
	}
	return out
}

func isImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image")
}

func parseSortOrder(order string) (repository.SortOrder, error) {
	switch strings.ToLower(order) {
	case "asc":
		return repository.SortAsc, nil
	case "desc":
		return repository.SortDesc, nil
	default:
		return repository.SortNone, errors.InvalidSortOrder("Invalid sort order. Only use ASC or DESC")
	}
}
