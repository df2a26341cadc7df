package photos

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type fakeCloudinary struct {
	uploadParams  uploader.UploadParams
	uploadResult  *uploader.UploadResult
	uploadErr     error
	destroyID     string
	destroyResult string
}

func (f *fakeCloudinary) Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error) {
	f.uploadParams = params
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return f.uploadResult, nil
}

func (f *fakeCloudinary) Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error) {
	f.destroyID = params.PublicID
	return &uploader.DestroyResult{Result: f.destroyResult}, nil
}

func pngUpload() Upload {
	data := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	return Upload{Filename: "a.png", Size: int64(len(data)), Body: bytes.NewReader(data)}
}

func TestCloudinaryAccessor_AddPhoto(t *testing.T) {
	fake := &fakeCloudinary{uploadResult: &uploader.UploadResult{
		PublicID:  "abc123",
		SecureURL: "https://res.cloudinary.com/demo/image/upload/abc123.png",
	}}
	a := &CloudinaryAccessor{upload: fake}

	res, err := a.AddPhoto(context.Background(), pngUpload())
	if err != nil {
		t.Fatalf("AddPhoto() error = %v", err)
	}
	if res.PublicID != "abc123" || !strings.HasPrefix(res.URL, "https://") {
		t.Errorf("result = %+v", res)
	}
	if string(fake.uploadParams.Transformation) != "c_fill,h_500,w_500" {
		t.Errorf("transformation = %q", fake.uploadParams.Transformation)
	}
}

func TestCloudinaryAccessor_AddPhotoErrors(t *testing.T) {
	t.Run("empty file", func(t *testing.T) {
		a := &CloudinaryAccessor{upload: &fakeCloudinary{}}
		if _, err := a.AddPhoto(context.Background(), Upload{}); !errors.Is(err, ErrEmptyFile) {
			t.Errorf("error = %v, want ErrEmptyFile", err)
		}
	})

	t.Run("host error message", func(t *testing.T) {
		fake := &fakeCloudinary{uploadResult: &uploader.UploadResult{
			Error: api.ErrorResp{Message: "Invalid image file"},
		}}
		a := &CloudinaryAccessor{upload: fake}

		_, err := a.AddPhoto(context.Background(), pngUpload())
		var uploadErr *UploadError
		if !errors.As(err, &uploadErr) || uploadErr.Message != "Invalid image file" {
			t.Errorf("error = %v, want UploadError with host message", err)
		}
	})

	t.Run("transport error", func(t *testing.T) {
		a := &CloudinaryAccessor{upload: &fakeCloudinary{uploadErr: io.ErrUnexpectedEOF}}
		if _, err := a.AddPhoto(context.Background(), pngUpload()); !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("error = %v", err)
		}
	})
}

func TestCloudinaryAccessor_DeletePhoto(t *testing.T) {
	tests := []struct {
		hostResult string
		want       string
	}{
		{"ok", "ok"},
		{"not found", ""},
		{"", ""},
	}

	for _, tt := range tests {
		fake := &fakeCloudinary{destroyResult: tt.hostResult}
		a := &CloudinaryAccessor{upload: fake}

		got, err := a.DeletePhoto(context.Background(), "abc123")
		if err != nil {
			t.Fatalf("DeletePhoto() error = %v", err)
		}
		if got != tt.want {
			t.Errorf("host %q: got %q, want %q", tt.hostResult, got, tt.want)
		}
		if fake.destroyID != "abc123" {
			t.Errorf("destroyed %q", fake.destroyID)
		}
	}
}

type fakeS3 struct {
	putCalls  int
	failPuts  int
	putKey    string
	putBodies [][]byte
	deleted   []string
	deleteErr error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putCalls++
	body, _ := io.ReadAll(in.Body)
	f.putBodies = append(f.putBodies, body)
	f.putKey = aws.ToString(in.Key)
	if f.putCalls <= f.failPuts {
		return nil, errors.New("503 slow down")
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Accessor_AddPhotoRetries(t *testing.T) {
	fake := &fakeS3{failPuts: 2}
	a := newS3Accessor(fake, "photos-bucket", "https://cdn.example.com/")
	a.retryDelay = 0

	res, err := a.AddPhoto(context.Background(), pngUpload())
	if err != nil {
		t.Fatalf("AddPhoto() error = %v", err)
	}
	if fake.putCalls != 3 {
		t.Errorf("put calls = %d, want 3", fake.putCalls)
	}
	// Every attempt must send the full body.
	for i, body := range fake.putBodies {
		if len(body) != len(fake.putBodies[0]) || len(body) == 0 {
			t.Errorf("attempt %d sent %d bytes", i, len(body))
		}
	}
	if fake.putKey != "photos/"+res.PublicID {
		t.Errorf("key = %q, public id = %q", fake.putKey, res.PublicID)
	}
	if res.URL != "https://cdn.example.com/photos/"+res.PublicID {
		t.Errorf("url = %q", res.URL)
	}
}

func TestS3Accessor_AddPhotoGivesUp(t *testing.T) {
	fake := &fakeS3{failPuts: 10}
	a := newS3Accessor(fake, "b", "https://cdn.example.com")
	a.retryDelay = 0

	_, err := a.AddPhoto(context.Background(), pngUpload())
	var uploadErr *UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("error = %v, want UploadError", err)
	}
	if fake.putCalls != 3 {
		t.Errorf("put calls = %d, want 3", fake.putCalls)
	}
}

func TestS3Accessor_DeletePhoto(t *testing.T) {
	fake := &fakeS3{}
	a := newS3Accessor(fake, "b", "https://cdn.example.com")

	got, err := a.DeletePhoto(context.Background(), "01hz3v4k6m8n9p0q1r2s3t4v5w")
	if err != nil || got != "ok" {
		t.Fatalf("DeletePhoto() = %q, %v", got, err)
	}
	if len(fake.deleted) != 1 || fake.deleted[0] != "photos/01hz3v4k6m8n9p0q1r2s3t4v5w" {
		t.Errorf("deleted = %v", fake.deleted)
	}

	// Ids we never issued are not deleted.
	got, err = a.DeletePhoto(context.Background(), "../secret")
	if err != nil || got != "" {
		t.Errorf("DeletePhoto(bad id) = %q, %v", got, err)
	}

	fake.deleteErr = errors.New("access denied")
	if _, err := a.DeletePhoto(context.Background(), "01hz3v4k6m8n9p0q1r2s3t4v5w"); err == nil {
		t.Error("expected error from host")
	}
}
