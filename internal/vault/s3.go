package vault

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"gss-go/internal/config"
	"gss-go/internal/gss"
)

// md5MetaKey is the user metadata key holding the hex MD5 of an object.
// Multipart ETags are not MD5s, so the upload records its own.
const md5MetaKey = "gss-md5"

// S3API is the subset of the S3 client used by S3FolderStore.
type S3API interface {
	manager.UploadAPIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3FolderStore stores sessions in an S3 bucket. Folders are key prefixes
// ending in "/", each backed by an empty marker object so that empty
// session folders remain visible:
//
//	<prefix>/<title>/<YYYY-MM-DD HH_MM>/<screenshot files>
type S3FolderStore struct {
	client   S3API
	uploader *manager.Uploader
	bucket   string
	prefix   string // "" or ends in "/"
	endpoint string
}

// NewS3FolderStore creates a store over an existing client.
func NewS3FolderStore(client S3API, bucket, prefix, endpoint string) *S3FolderStore {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3FolderStore{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
		endpoint: strings.TrimRight(endpoint, "/"),
	}
}

// NewS3FolderStoreFromConfig builds an S3 client from the default AWS
// credential chain. GSS_S3_ACCESS_KEY_ID and GSS_S3_SECRET_ACCESS_KEY take
// precedence when set, for S3-compatible services.
func NewS3FolderStoreFromConfig(ctx context.Context, cfg config.FoldersConfig) (*S3FolderStore, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 folder store requires s3_bucket to be set")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if id, secret := os.Getenv("GSS_S3_ACCESS_KEY_ID"), os.Getenv("GSS_S3_SECRET_ACCESS_KEY"); id != "" && secret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(id, secret, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3FolderStore(client, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Endpoint), nil
}

func (s *S3FolderStore) RootID() string {
	return s.prefix
}

func (s *S3FolderStore) FindOrCreateFolder(ctx context.Context, name, parentID string) (*gss.Folder, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	key := parentID + name + "/"

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	switch {
	case err == nil:
	case isNotFound(err):
		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          strings.NewReader(""),
			ContentLength: aws.Int64(0),
		})
		if err != nil {
			return nil, fmt.Errorf("creating folder marker %s: %w", key, classify(err))
		}
	default:
		return nil, fmt.Errorf("checking folder %s: %w", key, classify(err))
	}

	return &gss.Folder{ID: key, Name: name, ParentID: parentID}, nil
}

// UploadFile uploads localPath to <folderID><remoteName>. The upload is
// skipped when the object already exists with the same size and MD5.
func (s *S3FolderStore) UploadFile(ctx context.Context, folderID, localPath, remoteName string) (*gss.FileHandle, error) {
	if err := validName(remoteName); err != nil {
		return nil, err
	}
	key := folderID + remoteName

	sum, size, err := fileDigest(localPath)
	if err != nil {
		return nil, err
	}
	handle := &gss.FileHandle{ID: key, Name: remoteName, FolderID: folderID, Size: size}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	switch {
	case err == nil:
		if aws.ToInt64(head.ContentLength) == size && remoteMD5(head) == sum {
			handle.Skipped = true
			return handle, nil
		}
	case isNotFound(err):
	default:
		return nil, fmt.Errorf("checking object %s: %w", key, classify(err))
	}

	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(remoteName)),
		Metadata:    map[string]string{md5MetaKey: sum},
	})
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", key, classify(err))
	}
	return handle, nil
}

func (s *S3FolderStore) FolderLink(folder *gss.Folder) string {
	if s.endpoint != "" {
		return s.endpoint + "/" + s.bucket + "/" + folder.ID
	}
	return "s3://" + s.bucket + "/" + folder.ID
}

// ValidateSetup verifies that the bucket exists and is accessible.
func (s *S3FolderStore) ValidateSetup(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", s.bucket, err)
	}
	return nil
}

// remoteMD5 prefers the recorded checksum and falls back to a single-part ETag.
func remoteMD5(head *s3.HeadObjectOutput) string {
	if sum, ok := head.Metadata[md5MetaKey]; ok {
		return sum
	}
	etag := strings.Trim(aws.ToString(head.ETag), `"`)
	if strings.Contains(etag, "-") {
		return ""
	}
	return etag
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}

// classify marks throttling and server errors as transient.
func classify(err error) error {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		code := re.HTTPStatusCode()
		if code == http.StatusTooManyRequests || code >= 500 {
			return fmt.Errorf("%w: %w", gss.ErrTransient, err)
		}
	}
	return err
}

func contentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

// Compile-time check that S3FolderStore implements gss.FolderStore
var _ gss.FolderStore = (*S3FolderStore)(nil)
