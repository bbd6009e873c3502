// Package media resolves avatar assets for catalog characters by probing an
// ordered list of folder and extension candidates.
package media

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Kind is the type of a resolved asset.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindNone  Kind = "none"
)

var (
	// ImageExtensions is the fixed image priority order.
	ImageExtensions = []string{"webp", "png", "jpg", "jpeg", "gif"}
	// VideoExtensions is the fixed video priority order.
	VideoExtensions = []string{"mp4", "webm"}
)

const defaultProbeConcurrency = 8

// Media is the outcome of a resolution. A KindNone result has an empty URL
// and means the caller renders a placeholder.
type Media struct {
	Kind Kind   `json:"kind"`
	URL  string `json:"url,omitempty"`
}

// Prober reports whether an asset exists at a relative path such as
// "assets/avatars/tech_01.png".
type Prober interface {
	Exists(ctx context.Context, assetPath string) bool
}

// Options configures a Resolver.
type Options struct {
	ImageFolders []string
	VideoFolders []string
	// Playable is the default set of video extensions the client can play.
	Playable []string
	// URLPrefix is prepended to the asset path in resolved URLs.
	URLPrefix string
	// Concurrency bounds parallel probe chains in ResolveAll.
	Concurrency int
}

// Resolver walks image candidates, then video candidates.
type Resolver struct {
	prober       Prober
	imageFolders []string
	videoFolders []string
	playable     []string
	urlPrefix    string
	concurrency  int
	logger       *slog.Logger
}

// NewResolver creates a resolver over prober.
func NewResolver(prober Prober, opts Options, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	playable := normalizeExts(opts.Playable)
	if len(playable) == 0 {
		playable = slices.Clone(VideoExtensions)
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultProbeConcurrency
	}
	return &Resolver{
		prober:       prober,
		imageFolders: cleanFolders(opts.ImageFolders),
		videoFolders: cleanFolders(opts.VideoFolders),
		playable:     playable,
		urlPrefix:    strings.TrimRight(opts.URLPrefix, "/"),
		concurrency:  concurrency,
		logger:       logger,
	}
}

// Resolve returns the first existing asset for key. playable narrows the
// video extensions for this call; an empty list uses the resolver default.
// A key with no asset at all yields KindNone, never an error.
func (r *Resolver) Resolve(ctx context.Context, key string, playable []string) Media {
	if !validKey(key) {
		return Media{Kind: KindNone}
	}

	for _, folder := range r.imageFolders {
		for _, ext := range ImageExtensions {
			if p := assetPath(folder, key, ext); r.prober.Exists(ctx, p) {
				return Media{Kind: KindImage, URL: r.url(p)}
			}
		}
	}

	canPlay := r.playable
	if fromCall := normalizeExts(playable); len(fromCall) > 0 {
		canPlay = fromCall
	}
	for _, folder := range r.videoFolders {
		for _, ext := range VideoExtensions {
			if !slices.Contains(canPlay, ext) {
				continue
			}
			if p := assetPath(folder, key, ext); r.prober.Exists(ctx, p) {
				return Media{Kind: KindVideo, URL: r.url(p)}
			}
		}
	}

	r.logger.Debug("no media for key", "key", key)
	return Media{Kind: KindNone}
}

// ResolveAll resolves every key concurrently. Each probe chain is
// independent; results are keyed by key.
func (r *Resolver) ResolveAll(ctx context.Context, keys []string, playable []string) map[string]Media {
	out := make(map[string]Media, len(keys))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, key := range keys {
		g.Go(func() error {
			m := r.Resolve(gctx, key, playable)
			mu.Lock()
			out[key] = m
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Resolver) url(p string) string {
	return r.urlPrefix + "/" + p
}

func assetPath(folder, key, ext string) string {
	if folder == "" {
		return key + "." + ext
	}
	return folder + "/" + key + "." + ext
}

func validKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	return !strings.ContainsAny(key, `/\`) && !strings.Contains(key, "..")
}

func cleanFolders(folders []string) []string {
	out := make([]string, 0, len(folders))
	for _, f := range folders {
		f = strings.Trim(strings.TrimSpace(f), "/")
		if strings.Contains(f, "..") {
			continue
		}
		out = append(out, f)
	}
	return out
}

func normalizeExts(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}
