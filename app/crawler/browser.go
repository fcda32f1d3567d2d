package crawler

import (
	"cmp"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/lysyi3m/blog-comb/app/post"
)

const (
	openTimeout   = 30 * time.Second
	evalTimeout   = 30 * time.Second
	scrollTimeout = 10 * time.Second
	closeTimeout  = 10 * time.Second
	clickTimeout  = 5 * time.Second

	scrollDistance  = "3000"
	maxScrolls      = 15
	maxIdleScrolls  = 3
	defaultSettle   = 3 * time.Second
	defaultDismiss  = time.Second
	dismissLinkText = "No thanks"
)

// linkScript lists every /p/ anchor on the rendered page with a best-effort title.
const linkScript = `(function() {
  const seen = new Set();
  const posts = [];
  document.querySelectorAll('a[href*="/p/"]').forEach(link => {
    const href = link.href || link.getAttribute('href');
    if (!href || !href.includes('/p/') || seen.has(href)) return;
    seen.add(href);
    let title = link.textContent.trim();
    if (!title || title.length < 3) {
      const parent = link.closest('article, [class*="post"], [class*="Post"]');
      const heading = parent && parent.querySelector('h1, h2, h3, h4, h5, [class*="title"], [class*="Title"]');
      if (heading) title = heading.textContent.trim();
    }
    posts.push({url: href, title: title || 'Untitled'});
  });
  return posts;
})();`

// CommandRunner executes one invocation of the rendering tool and returns its
// standard output.
type CommandRunner interface {
	Run(ctx context.Context, timeout time.Duration, args ...string) (string, error)
}

type execRunner struct {
	path string
}

func (r execRunner) Run(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.path, args...)
	output, err := cmd.Output()
	return strings.TrimSpace(string(output)), err
}

// Browser drives an external headless-browser CLI to list posts of blogs that
// render their archives client-side. The tool holds a single session, so
// Collect calls are serialized.
type Browser struct {
	runner  CommandRunner
	settle  time.Duration
	dismiss time.Duration

	mu sync.Mutex
}

// NewBrowser returns nil when command cannot be found on PATH.
func NewBrowser(command string) *Browser {
	if command == "" {
		return nil
	}
	path, err := exec.LookPath(command)
	if err != nil {
		slog.Debug("Rendering tool not available", "command", command)
		return nil
	}
	return NewBrowserWithRunner(execRunner{path: path}, defaultSettle, defaultDismiss)
}

func NewBrowserWithRunner(runner CommandRunner, settle, dismiss time.Duration) *Browser {
	return &Browser{runner: runner, settle: settle, dismiss: dismiss}
}

// Collect opens the blog's archive in the tool, scrolls to trigger lazy
// loading and returns the posts found, without content. The tool session is
// closed on every path.
func (b *Browser) Collect(ctx context.Context, blogURL string, maxPosts int) []post.Candidate {
	if b == nil {
		return nil
	}
	blogURL = strings.TrimRight(blogURL, "/")

	b.mu.Lock()
	defer b.mu.Unlock()

	defer func() {
		if _, err := b.runner.Run(context.WithoutCancel(ctx), closeTimeout, "close"); err != nil {
			slog.Debug("Failed to close rendering tool", "error", err)
		}
	}()

	if _, err := b.runner.Run(ctx, openTimeout, "open", blogURL+"/archive"); err != nil {
		if _, err := b.runner.Run(ctx, openTimeout, "open", blogURL); err != nil {
			slog.Warn("Rendering tool failed to open blog", "blog", blogURL, "error", err)
			return nil
		}
	}

	if !b.sleep(ctx, b.settle) {
		return nil
	}

	if _, err := b.runner.Run(ctx, clickTimeout, "find", "text", dismissLinkText, "click"); err == nil {
		b.sleep(ctx, b.dismiss)
	}

	acc := newAccumulator(maxPosts)
	b.collectLinks(ctx, acc)

	idle := 0
	for i := 0; i < maxScrolls && !acc.full(); i++ {
		if _, err := b.runner.Run(ctx, scrollTimeout, "scroll", "down", scrollDistance); err != nil {
			slog.Debug("Rendering tool scroll failed", "error", err)
		}
		if !b.sleep(ctx, b.settle) {
			break
		}

		before := acc.len()
		b.collectLinks(ctx, acc)
		if acc.len() == before {
			idle++
			if idle >= maxIdleScrolls {
				break
			}
		} else {
			idle = 0
		}
	}

	slog.Info("Rendering tool listed posts", "blog", blogURL, "count", acc.len())
	return acc.posts
}

func (b *Browser) collectLinks(ctx context.Context, acc *accumulator) {
	output, err := b.runner.Run(ctx, evalTimeout, "eval", linkScript, "--json")
	if err != nil {
		slog.Debug("Rendering tool eval failed", "error", err)
		return
	}

	for _, link := range parseEvalOutput(output) {
		if acc.full() {
			return
		}
		if !strings.Contains(link.URL, "/p/") {
			continue
		}
		acc.add(post.Candidate{
			Title:    cmp.Or(strings.TrimSpace(link.Title), post.UntitledTitle),
			URL:      link.URL,
			Metadata: map[string]string{"source": "browser", "platform": string(PlatformSubstack)},
		})
	}
}

func (b *Browser) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
