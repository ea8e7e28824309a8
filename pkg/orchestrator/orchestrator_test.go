package orchestrator

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openflowlabs/gatebuild/pkg/bundle"
	"github.com/openflowlabs/gatebuild/pkg/toolexec"
	"github.com/openflowlabs/gatebuild/pkg/workspace"
)

type fakeRunner struct {
	calls []toolexec.Invocation
}

func (f *fakeRunner) Name() string                          { return "fake" }
func (f *fakeRunner) TestUsability(ctx context.Context) bool { return true }
func (f *fakeRunner) Run(ctx context.Context, inv toolexec.Invocation) (toolexec.Result, error) {
	f.calls = append(f.calls, inv)
	return toolexec.Result{Stdout: "# generated\n"}, nil
}

func (f *fakeRunner) sawTool(name string) bool {
	for _, c := range f.calls {
		if c.Tool == name {
			return true
		}
	}
	return false
}

func buildTestArchiveServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gz := gzip.NewWriter(w)
		tw := tar.NewWriter(gz)
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: "sample-1.0/", Typeflag: tar.TypeDir, Mode: 0o755}))
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: "sample-1.0/configure", Mode: 0o755, Size: 0}))
		require.NoError(t, tw.Close())
		require.NoError(t, gz.Close())
	}))
}

func testPackage(srcURL string) *bundle.Package {
	return &bundle.Package{
		Name:           "library/sample",
		Version:        "1.0",
		Summary:        "Sample library",
		Classification: "System/Libraries",
		ProjectURL:     "https://example.com",
		License:        "MIT",
		LicenseFile:    "LICENSE",
		Sources: []bundle.SourceSection{
			{Sources: []bundle.SourceNode{
				{Kind: bundle.SourceKindArchive, Archive: &bundle.ArchiveSource{Src: srcURL}},
			}},
		},
		Build: bundle.BuildSection{Kind: bundle.BuildKindNoBuild},
	}
}

func newTestOptions(t *testing.T, runner *fakeRunner) Options {
	t.Helper()
	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)
	cache, err := workspace.NewArchiveCache(t.TempDir())
	require.NoError(t, err)
	return Options{
		Workspace:  ws,
		Cache:      cache,
		BundleRoot: t.TempDir(),
		RepoRoot:   filepath.Join(t.TempDir(), "repo"),
		Publisher:  "openflowlabs",
		Runner:     runner,
	}
}

func TestOrchestrator_Run_FullPipelineReachesPack(t *testing.T) {
	server := buildTestArchiveServer(t)
	defer server.Close()

	runner := &fakeRunner{}
	opts := newTestOptions(t, runner)
	o := New(opts)

	pkg := testPackage(server.URL + "/sample-1.0.tar.gz")
	require.NoError(t, o.Run(context.Background(), pkg))

	assert.True(t, runner.sawTool("pkgsend"))
	assert.True(t, runner.sawTool("pkgmogrify"))
	assert.True(t, runner.sawTool("pkgdepend"))
	assert.True(t, runner.sawTool("pkglint"))

	buildDir, err := opts.Workspace.BuildDir()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(buildDir, "library_sample", "configure"))
	assert.NoError(t, err)
}

func TestOrchestrator_Run_StopsAfterDownload(t *testing.T) {
	server := buildTestArchiveServer(t)
	defer server.Close()

	runner := &fakeRunner{}
	opts := newTestOptions(t, runner)
	opts.StopAfter = StageDownload
	o := New(opts)

	pkg := testPackage(server.URL + "/sample-1.0.tar.gz")
	require.NoError(t, o.Run(context.Background(), pkg))

	assert.False(t, runner.sawTool("pkgsend"))
	buildDir, err := opts.Workspace.BuildDir()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(buildDir, "library_sample"))
	assert.True(t, os.IsNotExist(err))
}

func TestOrchestrator_Run_SelectsTarballPathForTarballGate(t *testing.T) {
	server := buildTestArchiveServer(t)
	defer server.Close()

	runner := &fakeRunner{}
	opts := newTestOptions(t, runner)
	opts.Gate = &bundle.Gate{Distribution: bundle.DistributionTarball, Packages: []bundle.Package{}}
	opts.OutputDir = t.TempDir()
	protoDir, err := opts.Workspace.PrototypeDir()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(protoDir, "usr"), 0o755))
	o := New(opts)

	pkg := testPackage(server.URL + "/sample-1.0.tar.gz")
	require.NoError(t, o.Run(context.Background(), pkg))

	assert.True(t, runner.sawTool("gtar"))
	assert.False(t, runner.sawTool("pkgsend"))
}

func TestOrchestrator_Run_CleanRemovesWorkspaceDirsFirst(t *testing.T) {
	runner := &fakeRunner{}
	opts := newTestOptions(t, runner)
	buildDir, err := opts.Workspace.BuildDir()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(buildDir, "stale"), []byte("x"), 0o644))

	opts.Clean = true
	opts.StopAfter = StageDownload
	o := New(opts)

	server := buildTestArchiveServer(t)
	defer server.Close()
	pkg := testPackage(server.URL + "/sample-1.0.tar.gz")
	require.NoError(t, o.Run(context.Background(), pkg))

	_, err = os.Stat(filepath.Join(buildDir, "stale"))
	assert.True(t, os.IsNotExist(err))
}
