package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/janelia-flyem/szinterp/sz"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcp"
)

// OpenBucket returns a blob.Bucket for the given reference.
// The reference should be of the form:
//
//	gs://<bucketname>
//	s3://<bucketname>[/<prefix>]
//	vast://<endpoint>/<bucketname>
//	file:///<directory>
//	mem://
func OpenBucket(ctx context.Context, ref string) (bucket *blob.Bucket, err error) {
	switch {
	case strings.HasPrefix(ref, "s3://"):
		// Requires AWS credentials gocloud can find and the AWS_REGION environment variable.
		pathpart := strings.TrimPrefix(ref, "s3://")
		parts := strings.SplitN(pathpart, "/", 2)
		bucket, err = blob.OpenBucket(ctx, "s3://"+parts[0])
		if err != nil {
			sz.Errorf("Can't open bucket reference @ %q: %v\n", ref, err)
			return nil, err
		}
		if len(parts) == 2 && parts[1] != "" {
			prefix := parts[1]
			if !strings.HasSuffix(prefix, "/") {
				prefix += "/"
			}
			bucket = blob.PrefixedBucket(bucket, prefix)
		}

	case strings.HasPrefix(ref, "vast://"):
		// VAST S3-compatible storage of form "vast://<endpoint>/<bucket>".
		// AWS_REGION must be set though it is ignored, and AWS_SHARED_CREDENTIALS_FILE
		// should point to the access keys.
		parts := strings.SplitN(strings.TrimPrefix(ref, "vast://"), "/", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("vast ref must be of form 'vast://<endpoint>/<bucket>'")
		}
		url := fmt.Sprintf("s3://%s?endpoint=%s&s3ForcePathStyle=true", parts[1], parts[0])
		bucket, err = blob.OpenBucket(ctx, url)
		if err != nil {
			sz.Errorf("Can't open bucket reference @ %q: %v\n", ref, err)
			return nil, err
		}

	case strings.HasPrefix(ref, "gs://"):
		// See https://cloud.google.com/docs/authentication/production
		// for more info on alternatives.
		creds, err := gcp.DefaultCredentials(ctx)
		if err != nil {
			return nil, err
		}
		client, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
		if err != nil {
			return nil, err
		}
		bucket, err = gcsblob.OpenBucket(ctx, client, strings.TrimPrefix(ref, "gs://"), nil)
		if err != nil {
			sz.Errorf("Can't open bucket reference @ %q: %v\n", ref, err)
			return nil, err
		}

	case strings.HasPrefix(ref, "file://"), strings.HasPrefix(ref, "mem://"):
		bucket, err = blob.OpenBucket(ctx, ref)
		if err != nil {
			sz.Errorf("Can't open bucket reference @ %q: %v\n", ref, err)
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unsupported bucket reference %q", ref)
	}
	return bucket, nil
}
