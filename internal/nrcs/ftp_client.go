package nrcs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sync/atomic"
	"time"

	"github.com/jlaffaye/ftp"
	"golang.org/x/sync/errgroup"

	"github.com/andr9528/inews-ftp-gateway/internal/model"
)

// FTPClient is the production Client implementation: it downloads queue
// listings and story bodies from an NRCS FTP host, using a bounded pool of
// connections so a poll's concurrent story fetches never open more than
// PoolSize sockets at once.
type FTPClient struct {
	addr, user, pass string
	poolSize         int
	dialTimeout      time.Duration

	conns   chan *ftp.ServerConn
	inFlight int64
}

// FTPClientOption configures an FTPClient.
type FTPClientOption func(*FTPClient)

// WithPoolSize overrides the default bounded connection pool size.
func WithPoolSize(n int) FTPClientOption {
	return func(c *FTPClient) {
		if n > 0 {
			c.poolSize = n
		}
	}
}

// WithDialTimeout overrides the default FTP dial timeout.
func WithDialTimeout(d time.Duration) FTPClientOption {
	return func(c *FTPClient) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// NewFTPClient returns an FTPClient targeting addr (host:port), authenticating
// with user/pass. The connection pool is lazily filled on first use.
func NewFTPClient(addr, user, pass string, opts ...FTPClientOption) *FTPClient {
	c := &FTPClient{
		addr:        addr,
		user:        user,
		pass:        pass,
		poolSize:    4,
		dialTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.conns = make(chan *ftp.ServerConn, c.poolSize)
	return c
}

func (c *FTPClient) dial() (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(c.addr, ftp.DialWithTimeout(c.dialTimeout))
	if err != nil {
		return nil, fmt.Errorf("nrcs: dial %s: %w", c.addr, err)
	}
	if err := conn.Login(c.user, c.pass); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("nrcs: login: %w", err)
	}
	return conn, nil
}

func (c *FTPClient) acquire() (*ftp.ServerConn, error) {
	select {
	case conn := <-c.conns:
		return conn, nil
	default:
		return c.dial()
	}
}

func (c *FTPClient) release(conn *ftp.ServerConn) {
	select {
	case c.conns <- conn:
	default:
		conn.Quit()
	}
}

// DownloadRundown implements Client.
func (c *FTPClient) DownloadRundown(ctx context.Context, queueID model.QueueID) (ReducedRundown, error) {
	atomic.AddInt64(&c.inFlight, 1)
	defer atomic.AddInt64(&c.inFlight, -1)

	conn, err := c.acquire()
	if err != nil {
		return ReducedRundown{}, fmt.Errorf("nrcs: download %s: %w", queueID, err)
	}
	defer c.release(conn)

	entries, err := conn.List(string(queueID))
	if err != nil {
		return ReducedRundown{}, fmt.Errorf("nrcs: list %s: %w", queueID, err)
	}

	rundown := ReducedRundown{Segments: make([]ListedSegment, 0, len(entries))}
	for _, e := range entries {
		if e.Type != ftp.EntryTypeFile {
			continue
		}
		rundown.Segments = append(rundown.Segments, ListedSegment{
			SegmentID: model.SegmentID(e.Name),
			Name:      e.Name,
			Modified:  e.Time,
			Locator:   fmt.Sprintf("%d", e.Size),
		})
	}
	return rundown, nil
}

// FetchStoriesByID implements Client. Fetches run concurrently, bounded by
// the connection pool, via errgroup: the first hard failure cancels the
// remaining fetches, matching the FetchFailure contract in spec.md §7 (the
// caller skips the whole rundown for this poll rather than emit a partial,
// inconsistent set of stories).
func (c *FTPClient) FetchStoriesByID(ctx context.Context, queueID model.QueueID, segmentIDs []model.SegmentID) (map[model.SegmentID]model.UnrankedSegment, error) {
	atomic.AddInt64(&c.inFlight, int64(len(segmentIDs)))
	defer atomic.AddInt64(&c.inFlight, -int64(len(segmentIDs)))

	results := make(map[model.SegmentID]model.UnrankedSegment, len(segmentIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.poolSize)
	out := make(chan model.UnrankedSegment, len(segmentIDs))
	for _, id := range segmentIDs {
		id := id
		g.Go(func() error {
			seg, err := c.fetchOne(gctx, queueID, id)
			if err != nil {
				return err
			}
			out <- seg
			return nil
		})
	}

	waitErr := g.Wait()
	close(out)
	for seg := range out {
		results[seg.SegmentID] = seg
	}
	if waitErr != nil {
		return results, fmt.Errorf("nrcs: fetch stories for %s: %w", queueID, waitErr)
	}
	return results, nil
}

func (c *FTPClient) fetchOne(ctx context.Context, queueID model.QueueID, id model.SegmentID) (model.UnrankedSegment, error) {
	if err := ctx.Err(); err != nil {
		return model.UnrankedSegment{}, err
	}
	conn, err := c.acquire()
	if err != nil {
		return model.UnrankedSegment{}, err
	}
	defer c.release(conn)

	fullPath := path.Join(string(queueID), string(id))
	resp, err := conn.Retr(fullPath)
	if err != nil {
		return model.UnrankedSegment{}, fmt.Errorf("retr %s: %w", fullPath, err)
	}
	defer resp.Close()

	raw, err := io.ReadAll(resp)
	if err != nil {
		return model.UnrankedSegment{}, fmt.Errorf("read %s: %w", fullPath, err)
	}

	var meta model.StoryMeta
	_ = json.Unmarshal(raw, &meta) // opaque payload: a malformed meta block just leaves Float=false

	return model.UnrankedSegment{
		SegmentID: id,
		RundownID: model.RundownID(queueID),
		Locator:   fmt.Sprintf("%d", len(raw)),
		INewsStory: model.StoryPayload{
			Raw:  raw,
			Meta: meta,
		},
	}, nil
}

// QueueLength implements Client.
func (c *FTPClient) QueueLength() int {
	return int(atomic.LoadInt64(&c.inFlight))
}
