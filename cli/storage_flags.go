package cli

import (
	"context"

	"github.com/alecthomas/kingpin/v2"
	"github.com/pkg/errors"

	"github.com/gitvault/gitvault/repo/blob"
	"github.com/gitvault/gitvault/repo/blob/s3"
)

// storageFlags configure the S3-compatible storage backend.
type storageFlags struct {
	opt s3.Options
}

func (c *storageFlags) setup(app *kingpin.Application) {
	app.Flag("endpoint", "Endpoint of S3-compatible server (host or host:port)").Default("s3.amazonaws.com").Envar("GITVAULT_S3_ENDPOINT").StringVar(&c.opt.Endpoint)
	app.Flag("bucket", "Name of the S3 bucket").Required().Envar("GITVAULT_S3_BUCKET").StringVar(&c.opt.BucketName)
	app.Flag("object-prefix", "Prefix prepended to all object keys").Envar("GITVAULT_S3_PREFIX").StringVar(&c.opt.Prefix)
	app.Flag("access-key", "Access key ID").Envar("AWS_ACCESS_KEY_ID").StringVar(&c.opt.AccessKeyID)
	app.Flag("secret-access-key", "Secret access key").Envar("AWS_SECRET_ACCESS_KEY").StringVar(&c.opt.SecretAccessKey)
	app.Flag("session-token", "Session token (for temporary credentials)").Envar("AWS_SESSION_TOKEN").StringVar(&c.opt.SessionToken)
	app.Flag("region", "S3 region").Envar("AWS_REGION").StringVar(&c.opt.Region)
	app.Flag("disable-tls", "Connect without TLS").BoolVar(&c.opt.DoNotUseTLS)
	app.Flag("disable-tls-verification", "Skip TLS certificate verification").BoolVar(&c.opt.DoNotVerifyTLS)
	app.Flag("multipart-threshold", "Object size in bytes at which uploads switch to multipart").Int64Var(&c.opt.MultipartThreshold)
	app.Flag("part-size", "Size in bytes of each multipart chunk").Int64Var(&c.opt.PartSize)
}

func (c *storageFlags) connect(ctx context.Context) (blob.Storage, error) {
	st, err := s3.New(ctx, &c.opt)
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect to storage")
	}

	return st, nil
}
