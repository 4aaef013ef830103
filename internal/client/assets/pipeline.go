package assets

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"golang.org/x/sync/errgroup"
)

// Object is one file handed to an Uploader.
type Object struct {
	Key         string
	Digest      string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
}

// Uploader stores an object remotely and returns its remote reference.
type Uploader interface {
	Put(ctx context.Context, obj Object) (remoteRef string, err error)
}

// Connectivity is the part of connectivity.Observer the pipeline needs.
type Connectivity interface {
	Online() bool
}

const DefaultConcurrency = 4

type Pipeline struct {
	uploader    Uploader
	conn        Connectivity
	concurrency int
	log         logging.Logger
}

type Option func(*Pipeline)

func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

func NewPipeline(u Uploader, conn Connectivity, opts ...Option) *Pipeline {
	p := &Pipeline{
		uploader:    u,
		conn:        conn,
		concurrency: DefaultConcurrency,
		log:         logging.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	p.log = p.log.With("module", "assets")
	return p
}

// Upload sends one local file and returns its remote reference.
func (p *Pipeline) Upload(ctx context.Context, localPath string) (string, error) {
	ref, _, err := p.upload(ctx, localPath)
	return ref, err
}

func (p *Pipeline) upload(ctx context.Context, localPath string) (ref, digest string, err error) {
	fail := func(cause error) (string, string, error) {
		return "", "", &UploadFailedError{Path: localPath, Cause: cause}
	}

	if p.conn != nil && !p.conn.Online() {
		return fail(ErrOffline)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fail(err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fail(err)
	}
	if st.IsDir() {
		return fail(fmt.Errorf("%s is a directory", localPath))
	}

	digest, err = Digest(f)
	if err != nil {
		return fail(err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fail(err)
	}

	ref, err = p.uploader.Put(ctx, Object{
		Key:         ObjectKey(digest, localPath),
		Digest:      digest,
		ContentType: contentType(localPath),
		Size:        st.Size(),
		Body:        f,
	})
	if err != nil {
		return fail(err)
	}
	if ref == "" {
		return fail(fmt.Errorf("empty remote reference"))
	}

	p.log.Debug(ctx, "uploaded asset", "path", localPath, "ref", ref)
	return ref, digest, nil
}

// Outcome is the result of uploading one attachment.
type Outcome struct {
	Attachment models.Attachment
	RemoteRef  string
	Digest     string
	Err        error
}

// UploadAll uploads the local attachments in parallel, at most the configured
// number at a time. Outcomes keep the input order. A failure never cancels
// the other uploads.
func (p *Pipeline) UploadAll(ctx context.Context, attachments []models.Attachment) []Outcome {
	out := make([]Outcome, len(attachments))

	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for i, a := range attachments {
		out[i].Attachment = a
		if !a.IsLocal() {
			out[i].Err = &UploadFailedError{Path: a.LocalPath, Cause: fmt.Errorf("attachment %s is not local", a.Id)}
			continue
		}
		g.Go(func() error {
			out[i].RemoteRef, out[i].Digest, out[i].Err = p.upload(ctx, a.LocalPath)
			return nil
		})
	}
	_ = g.Wait()

	return out
}
