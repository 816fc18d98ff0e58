package main

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/oops"

	"imagevault/internal/auth"
	"imagevault/internal/errors"
	"imagevault/internal/service"
)

type seedOptions struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Dir       string
	Origin    string
}

type seedReport struct {
	Uploaded int
	Skipped  int
}

// seed registers the demo identity, or logs in when it already exists, and
// uploads every image found directly under opts.Dir.
func seed(ctx context.Context, authService service.AuthService, assetService service.AssetService, opts seedOptions, logger *slog.Logger) (seedReport, error) {
	var report seedReport

	token, err := authService.Register(ctx, service.Registration{
		FirstName:      opts.FirstName,
		LastName:       opts.LastName,
		Email:          opts.Email,
		Password:       opts.Password,
		RepeatPassword: opts.Password,
	})
	if errors.HasCode(err, errors.CodeAlreadyExists) {
		logger.Info("identity exists, logging in", "email", opts.Email)
		token, err = authService.Login(ctx, opts.Email, opts.Password)
	}
	if err != nil {
		return report, err
	}
	if opts.Dir == "" {
		return report, nil
	}

	files, err := imageFiles(opts.Dir)
	if err != nil {
		return report, err
	}

	bearer := auth.BearerPrefix + token
	for _, f := range files {
		_, err := assetService.Upload(ctx, bearer, opts.Origin, f)
		switch {
		case err == nil:
			report.Uploaded++
			logger.Debug("uploaded", "filename", f.Filename, "size", len(f.Data))
		case errors.HasCode(err, errors.CodeAlreadyExists), errors.HasCode(err, errors.CodeNotAnImage):
			report.Skipped++
			logger.Info("skipped", "filename", f.Filename, "reason", err.Error())
		default:
			return report, err
		}
	}
	return report, nil
}

// imageFiles reads the regular files of dir in name order, skipping dotfiles. The content type
// comes from the extension, falling back to content sniffing.
func imageFiles(dir string) ([]service.File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, oops.With("dir", dir).Wrapf(err, "read image directory")
	}

	var files []service.File
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, oops.With("file", entry.Name()).Wrapf(err, "read image")
		}
		contentType := mime.TypeByExtension(filepath.Ext(entry.Name()))
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}
		files = append(files, service.File{
			Filename:    entry.Name(),
			ContentType: contentType,
			Data:        data,
		})
	}
	return files, nil
}
