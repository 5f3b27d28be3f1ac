package deploy

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/deploymenttheory/n8n-workflow-deployer/internal/common/cryptoutil"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/common/errors"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/common/fsutil"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/logger"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/n8n"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/tracing"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/workflow"
)

// WorkflowAPI is the part of the n8n API a Runner needs.
type WorkflowAPI interface {
	FindWorkflowsByName(ctx context.Context, name string) ([]n8n.Workflow, error)
	CreateWorkflow(ctx context.Context, payload interface{}) (*n8n.Workflow, error)
	UpdateWorkflow(ctx context.Context, id n8n.ID, payload interface{}) (*n8n.Workflow, error)
}

// DuplicatePolicy decides which remote workflow is updated when several
// share the local workflow's name.
type DuplicatePolicy string

const (
	DuplicateFirst  DuplicatePolicy = "first"  // first entry the server lists
	DuplicateOldest DuplicatePolicy = "oldest" // earliest createdAt
	DuplicateError  DuplicatePolicy = "error"  // fail the file
)

// Valid reports whether p is a known policy.
func (p DuplicatePolicy) Valid() bool {
	switch p {
	case DuplicateFirst, DuplicateOldest, DuplicateError:
		return true
	}
	return false
}

// Options configure a Runner.
type Options struct {
	Dir         string
	Extension   string
	Concurrency int
	OnDuplicate DuplicatePolicy

	// LookupFailOpen treats a failed name lookup as "not found" and creates
	// the workflow. When false the lookup error fails the file.
	LookupFailOpen bool

	// DryRun performs lookups only.
	DryRun bool

	Out    io.Writer // progress and summary
	ErrOut io.Writer // per-file error lines

	// TracerProvider receives run and per-file spans; nil uses the global one.
	TracerProvider trace.TracerProvider
}

// DefaultOptions mirror the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Dir:            "./workflows",
		Extension:      ".json",
		Concurrency:    1,
		OnDuplicate:    DuplicateFirst,
		LookupFailOpen: true,
		Out:            os.Stdout,
		ErrOut:         os.Stderr,
	}
}

// Runner deploys every workflow file in a directory.
type Runner struct {
	api    WorkflowAPI
	opts   Options
	runID  string
	tracer trace.Tracer

	mu sync.Mutex // guards writes to Out and ErrOut
}

// NewRunner creates a Runner. Empty Dir, Extension, OnDuplicate and writers,
// and a Concurrency below 1, take their DefaultOptions values.
func NewRunner(api WorkflowAPI, opts Options) *Runner {
	def := DefaultOptions()
	if opts.Dir == "" {
		opts.Dir = def.Dir
	}
	if opts.Extension == "" {
		opts.Extension = def.Extension
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.OnDuplicate == "" {
		opts.OnDuplicate = def.OnDuplicate
	}
	if opts.Out == nil {
		opts.Out = def.Out
	}
	if opts.ErrOut == nil {
		opts.ErrOut = def.ErrOut
	}

	return &Runner{
		api:    api,
		opts:   opts,
		runID:  uuid.NewString(),
		tracer: tracing.Tracer(opts.TracerProvider),
	}
}

// RunID identifies this runner's run in logs.
func (r *Runner) RunID() string {
	return r.runID
}

type outcome struct {
	file   string
	action Action
	err    error
}

// Run deploys every qualifying file and returns the per-file results. A
// missing or empty directory is not an error. The returned error is only
// set for failures outside per-file handling, which abort the run; failed
// files are reported through Results instead.
func (r *Runner) Run(ctx context.Context) (res *Results, err error) {
	ctx, span := r.tracer.Start(ctx, "deploy.Run", trace.WithAttributes(
		attribute.String("run_id", r.runID),
		attribute.String("dir", r.opts.Dir),
		attribute.Int("concurrency", r.opts.Concurrency),
		attribute.Bool("dry_run", r.opts.DryRun),
	))
	defer func() {
		if p := recover(); p != nil {
			res = nil
			err = fmt.Errorf("%w: %v", errors.ErrFatalRun, p)
		}

		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case res != nil:
			span.SetAttributes(
				attribute.Int("created", len(res.Created)),
				attribute.Int("updated", len(res.Updated)),
				attribute.Int("errors", len(res.Errors)),
			)
			if res.HasErrors() {
				span.SetStatus(codes.Error, errors.ErrDeploymentFailed.Error())
			}
		}
		span.End()
	}()

	log := logger.WithField("run_id", r.runID)

	r.println("Starting n8n workflow deployment...")
	r.println("Reading workflows from: " + r.opts.Dir)

	if !fsutil.DirExists(r.opts.Dir) {
		r.println(fmt.Sprintf("Warning: directory %s does not exist", r.opts.Dir))
		log.Warnw("Workflow directory not found", "dir", r.opts.Dir)
		return NewResults(), nil
	}

	files, err := fsutil.ListFilesByExt(r.opts.Dir, r.opts.Extension)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrFatalRun, err.Error())
	}

	if len(files) == 0 {
		r.println(fmt.Sprintf("Warning: no %s files found in %s", r.opts.Extension, r.opts.Dir))
		log.Warnw("No workflow files found", "dir", r.opts.Dir, "extension", r.opts.Extension)
		return NewResults(), nil
	}

	r.println(fmt.Sprintf("Found %d workflow(s) to deploy", len(files)))
	log.Infow("Deploying workflows",
		"count", len(files),
		"concurrency", r.opts.Concurrency,
		"dry_run", r.opts.DryRun,
	)

	outcomes, err := r.deployAll(ctx, files)
	if err != nil {
		return nil, err
	}

	res = NewResults()
	for _, o := range outcomes {
		res.Add(o.file, o.action, o.err)
	}

	log.Infow("Deployment finished",
		"created", len(res.Created),
		"updated", len(res.Updated),
		"errors", len(res.Errors),
	)
	return res, nil
}

// deployAll runs DeployFile for every file, at most Concurrency at a time.
// Outcomes are returned in file order whatever order they complete in.
func (r *Runner) deployAll(ctx context.Context, files []fsutil.DirEntry) ([]outcome, error) {
	outcomes := make([]outcome, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for i, f := range files {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("%w: %s: %v", errors.ErrFatalRun, f.Name, p)
				}
			}()

			file := fsutil.BaseName(f.FullPath, r.opts.Extension)
			action, deployErr := r.DeployFile(gctx, f.FullPath)
			outcomes[i] = outcome{file: file, action: action, err: deployErr}
			r.report(file, action, deployErr)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: run cancelled: %s", errors.ErrFatalRun, err.Error())
	}
	return outcomes, nil
}

// DeployFile creates or updates the remote workflow for the file at path.
// Every failure is returned; none is fatal to the run.
func (r *Runner) DeployFile(ctx context.Context, path string) (action Action, err error) {
	ctx, span := r.tracer.Start(ctx, "deploy.File", trace.WithAttributes(
		attribute.String("run_id", r.runID),
		attribute.String("file", fsutil.BaseName(path, r.opts.Extension)),
	))
	defer func() {
		span.SetAttributes(attribute.String("action", string(action)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	def, err := workflow.Load(path, r.opts.Extension)
	if err != nil {
		return ActionFailed, err
	}

	// Nothing reaches the server with the file's own activation flag
	def.ForceInactive()

	name := def.Name()
	span.SetAttributes(attribute.String("workflow", name))
	logger.LogDebug("Workflow loaded", map[string]interface{}{
		"run_id":   r.runID,
		"file":     def.File,
		"workflow": name,
		"sha256":   cryptoutil.Short(def.Checksum),
	})
	existing, err := r.findExisting(ctx, name)
	if err != nil {
		return ActionFailed, err
	}

	if existing == nil {
		if r.opts.DryRun {
			return ActionWouldCreate, nil
		}
		if _, err := r.api.CreateWorkflow(ctx, def.CreatePayload()); err != nil {
			return ActionFailed, err
		}
		return ActionCreated, nil
	}

	if existing.ID == "" {
		return ActionFailed, errors.ErrMissingRemoteID
	}
	if r.opts.DryRun {
		return ActionWouldUpdate, nil
	}
	if _, err := r.api.UpdateWorkflow(ctx, existing.ID, def.UpdatePayload()); err != nil {
		return ActionFailed, err
	}
	return ActionUpdated, nil
}

// findExisting looks name up remotely. It returns nil when there is no
// match, or when the lookup failed and LookupFailOpen is set.
func (r *Runner) findExisting(ctx context.Context, name string) (*n8n.Workflow, error) {
	candidates, err := r.api.FindWorkflowsByName(ctx, name)
	if err != nil {
		if r.opts.LookupFailOpen {
			logger.LogDebug("Workflow lookup failed, deploying as new", map[string]interface{}{
				"run_id":   r.runID,
				"workflow": name,
				"error":    err.Error(),
			})
			return nil, nil
		}
		return nil, err
	}

	return selectMatch(name, candidates, r.opts.OnDuplicate)
}

// selectMatch applies the duplicate policy to the lookup result.
func selectMatch(name string, candidates []n8n.Workflow, policy DuplicatePolicy) (*n8n.Workflow, error) {
	switch {
	case len(candidates) == 0:
		return nil, nil
	case len(candidates) == 1:
		return &candidates[0], nil
	}

	switch policy {
	case DuplicateError:
		return nil, fmt.Errorf("%w: %d remote workflows are named %q", errors.ErrAmbiguousMatch, len(candidates), name)

	case DuplicateOldest:
		ordered := make([]n8n.Workflow, len(candidates))
		copy(ordered, candidates)
		// Undated entries sort last; ties keep server order
		sort.SliceStable(ordered, func(i, j int) bool {
			ti, iok := ordered[i].Created()
			tj, jok := ordered[j].Created()
			if iok != jok {
				return iok
			}
			return iok && ti.Before(tj)
		})
		return &ordered[0], nil

	default:
		return &candidates[0], nil
	}
}

func (r *Runner) report(file string, action Action, err error) {
	fields := map[string]interface{}{"run_id": r.runID, "file": file, "action": string(action)}
	if err != nil {
		fields["error"] = err.Error()
	}
	logger.LogDebug("Workflow processed", fields)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		fmt.Fprintln(r.opts.ErrOut, progressLine(file, action, err))
		return
	}
	fmt.Fprintln(r.opts.Out, progressLine(file, action, nil))
}

func (r *Runner) println(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.opts.Out, line)
}
