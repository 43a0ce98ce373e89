<code>
=== ENDFILE ===
Include requirements.txt when needed and a main.py entrypoint.`

// ProjectIcon marks projects registered by the pipeline.
const ProjectIcon = "🤖"

// Build writes generated files to disk and checks they install, compile and
// start.
type Build struct {
	base
	validator build.Validator
}

// NewBuild creates the BUILDER worker.
func NewBuild(d Deps) *Build {
	return &Build{base: newBase(pipeline.WorkerBuilder, d), validator: d.Validator}
}

// RunCycle builds the head of the developed queue.
func (b *Build) RunCycle(ctx context.Context) (int, error) {
	it, err := b.first(store.StatusDeveloped)
	if err != nil || it == nil {
		return 0, err
	}
	log := b.log(ctx).With("item", it.ID)

	blocked, err := b.block(ctx, it, pipeline.BuildRejected, pipeline.MaxBuildFailures, "build failures")
	if blocked || err != nil {
		return 0, b.skipStale(ctx, it, err)
	}

	files := extract.Files(agentctx.LatestCode(it.Output))
	if len(files) == 0 {
		return 0, b.skipStale(ctx, it, b.reject(ctx, it, store.StatusQueuedSoftware, pipeline.BuildRejected, msgNoFiles))
	}

	log.Info("building", "files", len(files))
	res := b.validator.Validate(ctx, it.ID, files)
	if !res.OK {
		return 0, b.skipStale(ctx, it, b.reject(ctx, it, store.StatusQueuedSoftware, pipeline.BuildRejected, res.Detail))
	}

	output := it.Output + "\n\n---\n### Build Report (BUILDER)\n" + res.Report()
	if err := b.apply(it, store.Change{To: store.StatusBuilt, Output: &output}); err != nil {
		return 0, b.skipStale(ctx, it, err)
	}

	if err := b.store.UpsertProject(store.Project{
		ID:            strconv.FormatInt(it.ID, 10),
		Name:          it.Title(),
		Description:   it.Text,
		URL:           res.URL,
		Icon:          ProjectIcon,
		Status:        "development",
		Tech:          res.Tech(),
		RelatedAreaID: it.RelatedAreaID,
	}); err != nil {
		log.Error("register project failed", "err", err)
	}

	log.Info("build ok", "kind", res.Kind, "dir", res.Dir)
	b.notify(ctx, "*Build ok* #%d `%s`\nPath: %s. Waiting for QA.", it.ID, short(it.Text), res.Dir)
	return 1, nil
}
