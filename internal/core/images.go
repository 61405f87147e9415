package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bargn/bargn/pkg/models"
)

// ImageGenerator renders an image for a text prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// GenerateBlogImage validates req and asks the image generator for a header
// image. Provider refusals surface as models.ErrRateLimited or
// models.ErrQuotaExceeded.
func GenerateBlogImage(ctx context.Context, gen ImageGenerator, log *slog.Logger, req *models.GenerateImageRequest) (*models.GenerateImageResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: prompt is required", models.ErrInvalidArgument)
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	req.Title = strings.TrimSpace(req.Title)
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: prompt must be between 3 and 4000 characters", models.ErrInvalidArgument)
	}

	prompt := req.Prompt
	if req.Title != "" {
		prompt = fmt.Sprintf("Blog header image for an article titled %q. %s", req.Title, req.Prompt)
	}

	url, err := gen.GenerateImage(ctx, prompt)
	if err != nil {
		log.Error("blog image generation failed", "title", req.Title, "error", err)
		classified := models.ClassifyUpstream(err)
		if classified != err {
			return nil, classified
		}
		return nil, fmt.Errorf("failed to generate image: %w", err)
	}
	return &models.GenerateImageResponse{
		ImageURL:    url,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
