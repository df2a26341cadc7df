package photos

import (
	"context"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// fillTransformation crops uploads to a 500x500 square.
const fillTransformation = "c_fill,h_500,w_500"

type cloudinaryUploader interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

// CloudinaryAccessor stores photos on Cloudinary.
type CloudinaryAccessor struct {
	upload cloudinaryUploader
}

// NewCloudinaryAccessor creates an accessor from account credentials.
func NewCloudinaryAccessor(cloudName, apiKey, apiSecret string) (*CloudinaryAccessor, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("create cloudinary client: %w", err)
	}
	return &CloudinaryAccessor{upload: &cld.Upload}, nil
}

// AddPhoto uploads file with a 500x500 fill crop.
func (a *CloudinaryAccessor) AddPhoto(ctx context.Context, file Upload) (*UploadResult, error) {
	if file.Body == nil || file.Size == 0 {
		return nil, ErrEmptyFile
	}

	res, err := a.upload.Upload(ctx, file.Body, uploader.UploadParams{
		Transformation: fillTransformation,
	})
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload: %w", err)
	}
	if res.Error.Message != "" {
		return nil, &UploadError{Message: res.Error.Message}
	}

	return &UploadResult{
		PublicID: res.PublicID,
		URL:      res.SecureURL,
	}, nil
}

// DeletePhoto destroys the asset; "ok" only when Cloudinary reports ok.
func (a *CloudinaryAccessor) DeletePhoto(ctx context.Context, publicID string) (string, error) {
	res, err := a.upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return "", fmt.Errorf("cloudinary destroy: %w", err)
	}
	if res.Result == deleteOK {
		return deleteOK, nil
	}
	return "", nil
}
