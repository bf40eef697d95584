package workflows

import (
	"context"
	"errors"
	"sync"
	"time"

	"extension-launcher/internal/core"
	"extension-launcher/internal/extension"
)

type fakeBrowser struct {
	mu sync.Mutex

	launchErr     error
	navigateErr   error
	screenshotErr error

	// markerAfter is the number of FirstVisible calls before marker is reported
	markerAfter int
	marker      string
	checkErr    error
	// hang makes FirstVisible block until its context is done
	hang        bool

	launched    *core.LaunchOptions
	navigated   string
	checks      int
	screenshots []string
	closed      int
	calls       []string
}

func (f *fakeBrowser) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBrowser) Launch(ctx context.Context, opts core.LaunchOptions) error {
	f.record("launch")
	if f.launchErr != nil {
		return f.launchErr
	}
	f.launched = &opts
	return nil
}

func (f *fakeBrowser) Navigate(ctx context.Context, url string) error {
	f.record("navigate")
	f.navigated = url
	return f.navigateErr
}

func (f *fakeBrowser) WaitForBody(ctx context.Context, timeout time.Duration) error {
	f.record("body")
	return nil
}

func (f *fakeBrowser) FirstVisible(ctx context.Context, selectors []string) (string, error) {
	f.mu.Lock()
	f.checks++
	hang := f.hang
	f.mu.Unlock()
	if hang {
		<-ctx.Done()
		return "", ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkErr != nil {
		return "", f.checkErr
	}
	if f.marker != "" && f.checks > f.markerAfter {
		return f.marker, nil
	}
	return "", nil
}

func (f *fakeBrowser) Screenshot(ctx context.Context, path string, fullPage bool) error {
	f.record("screenshot")
	if f.screenshotErr != nil {
		return f.screenshotErr
	}
	f.screenshots = append(f.screenshots, path)
	return nil
}

func (f *fakeBrowser) CurrentURL(ctx context.Context) (string, error) {
	return "https://example.com/thanks", nil
}

func (f *fakeBrowser) Title(ctx context.Context) (string, error) {
	return "Thanks", nil
}

func (f *fakeBrowser) Close(ctx context.Context) error {
	f.record("close")
	f.closed++
	return nil
}

type fakeDisplay struct {
	startErr error
	started  int
	stopped  int
}

func (d *fakeDisplay) Start(ctx context.Context) (string, error) {
	if d.startErr != nil {
		return "", d.startErr
	}
	d.started++
	return ":99", nil
}

func (d *fakeDisplay) Stop() error {
	d.stopped++
	return nil
}

type fakeUnpacker struct {
	err   error
	names []string
}

func (u *fakeUnpacker) ExtractAll(ctx context.Context, names []string) ([]*extension.Unpacked, error) {
	if u.err != nil {
		return nil, u.err
	}
	u.names = names
	out := make([]*extension.Unpacked, 0, len(names))
	for _, n := range names {
		out = append(out, &extension.Unpacked{Dir: "/tmp/extensions/" + n})
	}
	return out, nil
}

type fakeRepo struct {
	runs     []*core.Run
	canStart bool
	limitErr error
}

func (r *fakeRepo) CreateRun(ctx context.Context, run *core.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.runs = append(r.runs, run)
	return nil
}

func (r *fakeRepo) GetRun(ctx context.Context, id string) (*core.Run, error) {
	for _, run := range r.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) ListRecentRuns(ctx context.Context, limit int) ([]*core.Run, error) {
	return r.runs, nil
}

func (r *fakeRepo) GetTodayRunCount(ctx context.Context) (int64, error) {
	return int64(len(r.runs)), nil
}

func (r *fakeRepo) CanStartRun(ctx context.Context, dailyLimit int) (bool, error) {
	return r.canStart, r.limitErr
}

func (r *fakeRepo) Migrate(ctx context.Context) error { return nil }

func (r *fakeRepo) Close() error { return nil }

type fakeWaiter struct {
	outcome *core.WaitOutcome
	err     error
}

func (w *fakeWaiter) Wait(ctx context.Context, browser core.BrowserPort) (*core.WaitOutcome, error) {
	return w.outcome, w.err
}

var errBoom = errors.New("boom")
