package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lumora-app/lumora-api/internal/apperr"
)

// FileStorage abstracts the object-storage destination for message media.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// MediaService validates and stores message attachments, returning their
// storage URLs. A failed upload fails the whole request: a message cannot be
// considered persisted without its media.
type MediaService interface {
	Upload(ctx context.Context, files []*multipart.FileHeader) ([]string, error)
}

type mediaService struct {
	storage FileStorage
	maxSize int64
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// Attachment types accepted for support messages.
var allowedMediaPrefixes = []string{"image/", "video/"}

// NewMediaService constructs the media service.
func NewMediaService(storage FileStorage, maxSizeMB int, logger zerolog.Logger) MediaService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &mediaService{
		storage: storage,
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		logger:  logger.With().Str("component", "media_service").Logger(),
		tracer:  otel.Tracer("github.com/lumora-app/lumora-api/internal/service/media"),
	}
}

func (s *mediaService) Upload(ctx context.Context, files []*multipart.FileHeader) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}

	ctx, span := s.tracer.Start(ctx, "media.upload", trace.WithAttributes(
		attribute.Int("media.count", len(files)),
	))
	defer span.End()

	urls := make([]string, 0, len(files))
	for _, file := range files {
		url, err := s.uploadOne(ctx, file)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		urls = append(urls, url)
	}

	return urls, nil
}

func (s *mediaService) uploadOne(ctx context.Context, file *multipart.FileHeader) (string, error) {
	if file.Size > s.maxSize {
		return "", apperr.Validation(fmt.Sprintf("file %s exceeds the maximum allowed size", file.Filename))
	}

	opened, err := file.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = opened.Close() }()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(opened, s.maxSize+1)); err != nil {
		return "", err
	}
	if int64(buf.Len()) > s.maxSize {
		return "", apperr.Validation(fmt.Sprintf("file %s exceeds the maximum allowed size", file.Filename))
	}

	mime := mimetype.Detect(buf.Bytes())
	if !mediaTypeAllowed(mime.String()) {
		return "", apperr.Validation(fmt.Sprintf("file type %s is not allowed", mime.String()))
	}

	url, err := s.storage.Upload(ctx, file.Filename, bytes.NewReader(buf.Bytes()))
	if err != nil {
		s.logger.Error().Err(err).Str("file", file.Filename).Msg("media upload failed")
		return "", apperr.Internal("failed to store media")
	}

	return url, nil
}

func mediaTypeAllowed(mime string) bool {
	for _, prefix := range allowedMediaPrefixes {
		if strings.HasPrefix(mime, prefix) {
			return true
		}
	}
	return false
}
