package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPutObjectAPI struct {
	mock.Mock
}

func (m *MockPutObjectAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDetectImage(t *testing.T) {
	contentType, ext, err := DetectImage(pngImage(t, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, ".png", ext)

	_, _, err = DetectImage(nil)
	assert.True(t, errors.Is(err, ErrEmptyImage))

	_, _, err = DetectImage([]byte("%PDF-1.4 not an image"))
	assert.True(t, errors.Is(err, ErrUnsupportedImage))
}

func TestS3Uploader_Upload(t *testing.T) {
	data := pngImage(t, 8, 8)
	api := new(MockPutObjectAPI)
	api.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Bucket) == "goldenthreads" &&
			strings.HasPrefix(aws.ToString(in.Key), "products/product_img_") &&
			strings.HasSuffix(aws.ToString(in.Key), ".png") &&
			aws.ToString(in.ContentType) == "image/png"
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	uploader := NewS3Uploader(api, S3Options{Bucket: "goldenthreads", Prefix: "products/"})
	url, err := uploader.Upload(context.Background(), data, "image/png")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://goldenthreads.s3.amazonaws.com/products/product_img_"))
	api.AssertExpectations(t)
}

func TestS3Uploader_UploadFailure(t *testing.T) {
	api := new(MockPutObjectAPI)
	api.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset")).Once()

	uploader := NewS3Uploader(api, S3Options{Bucket: "b"})
	url, err := uploader.Upload(context.Background(), pngImage(t, 2, 2), "")

	require.Error(t, err)
	assert.Empty(t, url)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestS3Uploader_RejectsNonImage(t *testing.T) {
	api := new(MockPutObjectAPI)
	uploader := NewS3Uploader(api, S3Options{Bucket: "b"})

	_, err := uploader.Upload(context.Background(), []byte("plain text"), "image/png")

	assert.True(t, errors.Is(err, ErrUnsupportedImage))
	api.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything)
}

func TestS3Uploader_PublicURL(t *testing.T) {
	tests := []struct {
		name string
		opts S3Options
		want string
	}{
		{"cdn wins", S3Options{Bucket: "b", Endpoint: "http://localhost:4566", CDNDomain: "cdn.example.com/"}, "https://cdn.example.com/k.jpg"},
		{"custom endpoint", S3Options{Bucket: "b", Endpoint: "http://localhost:4566/"}, "http://localhost:4566/b/k.jpg"},
		{"aws default", S3Options{Bucket: "b"}, "https://b.s3.amazonaws.com/k.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewS3Uploader(nil, tt.opts).PublicURL("k.jpg"))
		})
	}
}

func TestCropSquare(t *testing.T) {
	out, err := CropSquare(pngImage(t, 200, 100), DefaultCrop)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 80, img.Bounds().Dx())
	assert.Equal(t, 80, img.Bounds().Dy())
}

func TestCropSquare_ClampsToBounds(t *testing.T) {
	out, err := CropSquare(pngImage(t, 50, 50), CropRect{X: 90, Y: 90, Width: 50})
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 25, img.Bounds().Dx())
}

func TestCropSquare_Invalid(t *testing.T) {
	_, err := CropSquare([]byte("nope"), DefaultCrop)
	assert.True(t, errors.Is(err, ErrUnsupportedImage))

	_, err = CropSquare(pngImage(t, 10, 10), CropRect{Width: 0})
	assert.Error(t, err)
}
