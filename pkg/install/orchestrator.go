// pkg/install/orchestrator.go
package install

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/arc-language/bundlekit/pkg/build"
	"github.com/arc-language/bundlekit/pkg/core"
	"github.com/arc-language/bundlekit/pkg/env"
	"github.com/arc-language/bundlekit/pkg/fetch"
	"github.com/arc-language/bundlekit/pkg/manifest"
	"github.com/arc-language/bundlekit/pkg/platform"
	"github.com/arc-language/bundlekit/pkg/stage"
)

// Report describes the outcome of one Run
type Report struct {
	State       State // Done or Failed
	FailedStage State // meaningful when State is Failed
	Component   string
	Err         error // a *StageError when State is Failed
	Plan        []string
	Layout      map[string]string
	Env         *env.RuntimeEnvironment
	Launcher    string
	History     []Transition
}

// Orchestrator installs one manifest into one prefix. It runs strictly
// sequentially: later components consume the staged output of earlier ones.
// Two orchestrators must not target the same prefix at once; nothing here
// prevents it.
type Orchestrator struct {
	config   *core.Config
	manifest *manifest.Manifest
	host     platform.Host
	logger   *log.Logger

	fetcher  core.Fetcher
	builder  *build.Builder
	stager   *stage.Stager
	composer *env.Composer
	baseEnv  build.Env

	// OnTransition, when set, is called on every state change
	OnTransition func(t Transition)

	layout *Layout
	report *Report
}

// New creates an orchestrator for host
func New(cfg *core.Config, m *manifest.Manifest, host platform.Host) *Orchestrator {
	logger := cfg.GetLogger()

	fetcher := fetch.New(&fetch.Config{
		DownloadDir: cfg.DownloadDir(),
		WorkRoot:    filepath.Join(cfg.CachePath, "work"),
		Timeout:     cfg.Timeout,
		Logger:      logger,
	})
	builder := build.New(&build.Config{
		Make:     cfg.Make,
		Parallel: cfg.ParallelBuild,
		Logger:   logger,
	})

	return &Orchestrator{
		config:   cfg,
		manifest: m,
		host:     host,
		logger:   logger,
		fetcher:  fetcher,
		builder:  builder,
		stager:   stage.New(fetcher, builder, &stage.Config{OverrideHashes: cfg.OverrideHashes, Logger: logger}),
		composer: env.NewComposer(&m.Runtime, &env.Config{Logger: logger}),
		baseEnv:  build.SnapshotEnv(),
	}
}

// WithFetcher replaces the artifact fetcher, for mirrors and tests
func (o *Orchestrator) WithFetcher(f core.Fetcher) *Orchestrator {
	o.fetcher = f
	o.stager = stage.New(f, o.builder, &stage.Config{OverrideHashes: o.config.OverrideHashes, Logger: o.logger})
	return o
}

// WithBaseEnv replaces the environment every build starts from
func (o *Orchestrator) WithBaseEnv(e build.Env) *Orchestrator {
	o.baseEnv = e
	return o
}

// Plan computes the install plan for the orchestrator's host
func (o *Orchestrator) Plan() (*Plan, error) {
	return NewPlan(o.manifest.Components, o.host)
}

// Run performs one install. The returned error is Report.Err.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	o.layout = NewLayout()
	o.report = &Report{}
	o.to(StateInit, "")

	plan, err := o.prepare()
	if err != nil {
		return o.fail(StateInit, "", err)
	}
	o.report.Plan = plan.IDs()
	o.logger.Printf("Install plan for %s: %v", o.host, o.report.Plan)

	for i := range plan.Components {
		spec := &plan.Components[i]
		if st, err := o.installComponent(ctx, spec); err != nil {
			return o.fail(st, spec.ID, err)
		}
	}

	o.to(StateComposingEnvironment, "")
	renv, err := o.composer.Compose(o.layout, o.host)
	if err == nil {
		err = renv.Apply()
	}
	if err != nil {
		return o.fail(StateComposingEnvironment, "", err)
	}
	o.report.Env = renv

	o.to(StateLinking, "")
	if l := o.manifest.Launcher; l.Name != "" {
		root, _ := o.layout.Path(l.Component)
		path, err := link(o.config.Prefix, l.Name, filepath.Join(root, filepath.FromSlash(l.Target)))
		if err != nil {
			return o.fail(StateLinking, l.Component, err)
		}
		o.report.Launcher = path
		o.logger.Printf("  ✓ Linked %s", path)
	}

	if err := saveReceipt(o.config.Prefix, o.receipt(plan, renv)); err != nil {
		err = fmt.Errorf("writing receipt: %w", err)
		if o.report.Launcher != "" {
			if rerr := removeLink(o.report.Launcher); rerr != nil {
				o.logger.Printf("  ⚠️  Could not remove launcher %s: %v", o.report.Launcher, rerr)
			}
			o.report.Launcher = ""
		}
		return o.fail(StateLinking, "", err)
	}

	o.to(StateDone, "")
	o.report.State = StateDone
	o.report.Layout = o.layout.Entries()
	return o.report, nil
}

// prepare refuses to run over a finished install and checks that the
// plan holds everything composition and linking will need.
func (o *Orchestrator) prepare() (*Plan, error) {
	installed, err := hasReceipt(o.config.Prefix)
	if err != nil {
		return nil, err
	}
	if installed {
		return nil, fmt.Errorf("%s: %w (run clean first)", o.config.Prefix, core.ErrAlreadyInstalled)
	}

	plan, err := o.Plan()
	if err != nil {
		return nil, err
	}

	if len(o.manifest.Runtime.Platforms) > 0 {
		if _, err := o.manifest.Runtime.Bindings(o.host); err != nil {
			return nil, err
		}
	}
	for _, id := range o.manifest.Runtime.Components(o.host) {
		if !plan.Has(id) {
			return nil, fmt.Errorf("runtime environment needs %s: %w", id, core.ErrUnresolvedDependency)
		}
	}
	if l := o.manifest.Launcher; l.Name != "" && !plan.Has(l.Component) {
		return nil, fmt.Errorf("launcher needs %s: %w", l.Component, core.ErrUnresolvedDependency)
	}
	return plan, nil
}

// installComponent fetches, builds or copies, and stages one component.
// The component's directory is cleared and marked incomplete before the
// fetch. On error it returns the state that failed, the marker stays and
// no layout entry is written.
func (o *Orchestrator) installComponent(ctx context.Context, spec *core.ComponentSpec) (State, error) {
	dest := filepath.Join(o.config.InstallRoot(), spec.ID)

	o.to(StateFetching, spec.ID)
	if err := stage.Begin(dest); err != nil {
		return StateFetching, err
	}
	if err := ctx.Err(); err != nil {
		return StateFetching, err
	}
	src, err := o.fetcher.Fetch(ctx, spec)
	if err != nil {
		return StateFetching, err
	}

	buildEnv := o.componentEnv(spec)

	switch spec.Kind {
	case core.KindCompile:
		o.to(StateBuilding, spec.ID)
		tree, err := stage.Locate(src, spec.Pattern)
		if err != nil {
			return StateBuilding, err
		}

		destDir := filepath.Join(o.config.WorkDir(spec.ID), "destdir")
		if err := os.RemoveAll(destDir); err != nil {
			return StateBuilding, err
		}
		err = o.builder.Build(ctx, &build.Request{
			Component:     spec.ID,
			SourceTree:    tree,
			Prefix:        dest,
			DestDir:       destDir,
			Env:           buildEnv,
			ConfigureArgs: o.expandAll(spec.ConfigureArgs),
		})
		if err != nil {
			return StateBuilding, err
		}

		o.to(StateStaging, spec.ID)
		if err := o.stager.StageCompiled(spec, destDir, dest); err != nil {
			return StateStaging, err
		}
	default:
		o.to(StateStaging, spec.ID)
		if err := o.stager.StagePrebuilt(spec, src, dest); err != nil {
			return StateStaging, err
		}
	}

	if err := o.stager.ApplyOverrides(ctx, spec, dest); err != nil {
		return StateStaging, err
	}
	if err := o.stager.RunSetup(ctx, spec, dest, buildEnv, o.expand); err != nil {
		return StateStaging, err
	}
	if err := ctx.Err(); err != nil {
		return StateStaging, err
	}
	if err := stage.Finish(dest); err != nil {
		return StateStaging, err
	}
	if err := o.layout.Set(spec.ID, dest); err != nil {
		return StateStaging, err
	}
	o.logger.Printf("  ✓ %s installed at %s", spec.ID, dest)
	return StateStaging, nil
}

// componentEnv builds a fresh environment for one component from the base
// snapshot and the layout so far.
func (o *Orchestrator) componentEnv(spec *core.ComponentSpec) build.Env {
	e := o.baseEnv
	if javaHome, ok := o.layout.Path(o.config.JVMComponent); ok {
		e = e.With("JAVA_HOME", javaHome).PrependPath("PATH", filepath.Join(javaHome, "bin"))
	}

	ant := o.config.Ant
	if ant == "" {
		ant, _ = platform.LookupTool("ant")
	}
	if ant != "" {
		e = e.With("ANT_FOUND", ant)
	}

	for k, v := range spec.BuildEnv {
		e = e.With(k, o.expand(v))
	}
	return e
}

// expand resolves ${prefix}, ${root} and ${<component>} against the layout.
// Unknown names are left untouched.
func (o *Orchestrator) expand(s string) string {
	return os.Expand(s, func(name string) string {
		switch name {
		case "prefix":
			return o.config.Prefix
		case "root":
			return o.config.InstallRoot()
		}
		if p, ok := o.layout.Path(name); ok {
			return p
		}
		return "${" + name + "}"
	})
}

func (o *Orchestrator) expandAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = o.expand(s)
	}
	return out
}

func (o *Orchestrator) to(s State, component string) {
	t := Transition{State: s, Component: component}
	o.report.History = append(o.report.History, t)
	if component != "" {
		o.logger.Printf("[%s] %s", s, component)
	} else {
		o.logger.Printf("[%s]", s)
	}
	if o.OnTransition != nil {
		o.OnTransition(t)
	}
}

func (o *Orchestrator) fail(failed State, component string, err error) (*Report, error) {
	serr := &StageError{Stage: failed, Component: component, Err: err}
	o.to(StateFailed, component)
	o.report.State = StateFailed
	o.report.FailedStage = failed
	o.report.Component = component
	o.report.Err = serr
	o.report.Layout = o.layout.Entries()
	o.logger.Printf("  ✗ %v", serr)
	return o.report, serr
}

func (o *Orchestrator) receipt(plan *Plan, renv *env.RuntimeEnvironment) *Receipt {
	r := &Receipt{
		Name:     o.manifest.Name,
		Host:     o.host.String(),
		Launcher: o.report.Launcher,
		Env:      renv.Vars,
	}
	for _, c := range plan.Components {
		p, _ := o.layout.Path(c.ID)
		r.Components = append(r.Components, ReceiptComponent{ID: c.ID, Path: p, URL: c.URL, SHA256: c.SHA256})
	}
	return r
}

// Clean removes everything a previous run left in the prefix: staged
// components, the launcher and the receipt. Downloads stay cached.
func (o *Orchestrator) Clean() error {
	if l := o.manifest.Launcher; l.Name != "" {
		if err := removeLink(LauncherPath(o.config.Prefix, l.Name)); err != nil {
			return err
		}
	}
	for _, dir := range []string{
		o.config.InstallRoot(),
		filepath.Dir(ReceiptPath(o.config.Prefix)),
		filepath.Join(o.config.CachePath, "work"),
	} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("removing %s: %w", dir, err)
		}
	}
	return nil
}

// Verify runs the installed launcher with the manifest's smoke arguments
func (o *Orchestrator) Verify(ctx context.Context) error {
	l := o.manifest.Launcher
	if l.Name == "" {
		return fmt.Errorf("manifest %s has no launcher", o.manifest.Name)
	}
	path := LauncherPath(o.config.Prefix, l.Name)
	argv := append([]string{path}, l.SmokeArgs...)
	return o.builder.Run(ctx, l.Name, "verify", o.config.Prefix, o.baseEnv, argv)
}
