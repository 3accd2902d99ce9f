package registry

import (
	"context"
	"database/sql"

	"review_toolkit/internal/app"
	"review_toolkit/internal/domain"
	"review_toolkit/internal/shared"
	"review_toolkit/internal/storage/csvfile"
	mysqlrepo "review_toolkit/internal/storage/mysql"
)

// Deps carries the process-wide collaborators operators run against.
// Database connections are opened per invocation from the supplied
// parameters and closed when the invocation ends.
type Deps struct {
	Config      shared.Config
	Source      domain.ReviewSource
	Checkpoints domain.Checkpoints // nil disables resume
	OpenDB      func(dsn string) (*sql.DB, error)
}

func intPtr(n int) *int { return &n }

func dbParams(cfg shared.Config) []ParamSpec {
	return []ParamSpec{
		{Name: "host", Type: TypeString, Default: cfg.DBHost, Help: "MySQL host:port"},
		{Name: "user", Type: TypeString, Default: cfg.DBUser, Help: "MySQL user"},
		{Name: "password", Type: TypeString, Default: cfg.DBPassword, Help: "MySQL password"},
		{Name: "db", Type: TypeString, Default: cfg.DBName, Help: "Database name"},
		{Name: "prefix", Type: TypeString, Default: "wp_", Help: "Table prefix"},
	}
}

// targetParams declares the dual CSV-or-database target of a transform.
func targetParams(cfg shared.Config) []ParamSpec {
	params := []ParamSpec{
		{Name: "csv", Type: TypeString, Help: "CSV file target; leave empty to target the database"},
		{Name: "post-id", Type: TypeInt, Help: "Post whose comments to target (database mode)"},
	}
	return append(params, dbParams(cfg)...)
}

var dryRunParam = ParamSpec{Name: "dry-run", Type: TypeBool, Default: "false", Help: "Report would-be changes without persisting them"}

var seedParam = ParamSpec{Name: "seed", Type: TypeInt, Default: "0", Help: "Name generator seed; 0 draws fresh random names"}

// Default assembles the operator catalog.
func Default(deps Deps) *Registry {
	r := New()
	r.Register(extractOp(deps))
	r.Register(insertOp(deps))
	r.Register(renameAuthorsOp(deps))
	r.Register(modifyReviewsOp(deps))
	r.Register(replaceWordOp(deps))
	return r
}

func extractOp(deps Deps) *Operator {
	return &Operator{
		Name:    "extract",
		Summary: "Scrape product reviews and export them to CSV",
		Params: []ParamSpec{
			{Name: "product", Type: TypeString, Required: true, Help: "Product ID to fetch reviews for"},
			{Name: "outfile", Type: TypeString, Default: "reviews.csv", Help: "CSV output filename"},
			{Name: "page-size", Type: TypeInt, Default: "100", Min: intPtr(1), Help: "Source page size"},
			{Name: "limit", Type: TypeInt, Default: "0", Min: intPtr(0), Help: "Max reviews (0 = all)"},
			{Name: "resume", Type: TypeBool, Default: "false", Help: "Continue from the last checkpointed page"},
			dryRunParam,
		},
		Run: func(ctx context.Context, args Args) (Result, error) {
			svc := app.NewScrapeService(deps.Source, deps.Checkpoints)
			sum, err := svc.Run(ctx, app.ScrapeRequest{
				ProductID: args.String("product"),
				OutFile:   args.String("outfile"),
				PageSize:  args.Int("page-size"),
				Limit:     args.Int("limit"),
				Resume:    args.Bool("resume"),
				DryRun:    args.Bool("dry-run"),
			})
			if err != nil {
				return Result{}, err
			}
			return Result{DryRun: args.Bool("dry-run"), Scrape: &sum}, nil
		},
	}
}

func insertOp(deps Deps) *Operator {
	params := []ParamSpec{
		{Name: "csv", Type: TypeString, Required: true, Help: "Path to CSV created by extract"},
		{Name: "post-id", Type: TypeInt, Required: true, Help: "Post the comments attach to"},
		{Name: "rating-key", Type: TypeString, Default: mysqlrepo.DefaultRatingKey, Help: "Meta key for the rating"},
		{Name: "verified-key", Type: TypeString, Default: mysqlrepo.DefaultVerifiedKey, Help: "Meta key for the verified flag"},
		{Name: "source-key", Type: TypeString, Default: mysqlrepo.DefaultSourceIDKey, Help: "Meta key for the source id (dedup key)"},
		{Name: "min-rating", Type: TypeInt, Default: "0", Min: intPtr(0), Max: intPtr(domain.MaxRating), Help: "Skip records rated below this"},
		dryRunParam,
	}
	params = append(params, dbParams(deps.Config)...)
	return &Operator{
		Name:    "insert",
		Summary: "Import a review CSV into the comments tables",
		Params:  params,
		Run: func(ctx context.Context, args Args) (Result, error) {
			db, repo, err := openRepo(deps, args)
			if err != nil {
				return Result{}, err
			}
			defer db.Close()

			svc := app.NewImportService(repo)
			sum, skipped, err := svc.Run(ctx, app.ImportRequest{
				CSVPath: args.String("csv"),
				Opts: domain.InsertOptions{
					PostID:      int64(args.Int("post-id")),
					RatingKey:   args.String("rating-key"),
					VerifiedKey: args.String("verified-key"),
					SourceIDKey: args.String("source-key"),
					MinRating:   args.Int("min-rating"),
				},
				DryRun: args.Bool("dry-run"),
			})
			if err != nil {
				return Result{}, err
			}
			return Result{DryRun: args.Bool("dry-run"), Import: &sum, CSVSkipped: skipped}, nil
		},
	}
}

func renameAuthorsOp(deps Deps) *Operator {
	params := []ParamSpec{
		{Name: "match", Type: TypeString, Default: domain.DefaultAuthor, Help: "Exact author name to replace"},
		seedParam,
		dryRunParam,
	}
	params = append(params, targetParams(deps.Config)...)
	return &Operator{
		Name:    "rename-authors",
		Summary: "Replace the platform placeholder author with generated names",
		Params:  params,
		Run: func(ctx context.Context, args Args) (Result, error) {
			gen := app.NewNameGenerator(uint64(args.Int("seed")))
			return runTransform(ctx, deps, args, app.RenameDefaultAuthor(args.String("match"), gen))
		},
	}
}

func modifyReviewsOp(deps Deps) *Operator {
	params := []ParamSpec{
		{Name: "threshold", Type: TypeInt, Default: "4", Min: intPtr(domain.MinRating), Max: intPtr(domain.MaxRating),
			Help: "Anonymise reviews rated strictly below this"},
		seedParam,
		dryRunParam,
	}
	params = append(params, targetParams(deps.Config)...)
	return &Operator{
		Name:    "modify-reviews",
		Summary: "Rename authors of reviews rated below a threshold",
		Params:  params,
		Run: func(ctx context.Context, args Args) (Result, error) {
			gen := app.NewNameGenerator(uint64(args.Int("seed")))
			return runTransform(ctx, deps, args, app.RenameByRating(args.Int("threshold"), gen))
		},
	}
}

func replaceWordOp(deps Deps) *Operator {
	params := []ParamSpec{
		{Name: "search", Type: TypeString, Required: true, Help: "Whole word to replace (case-insensitive)"},
		{Name: "replace", Type: TypeString, Required: true, Help: "Replacement text"},
		dryRunParam,
	}
	params = append(params, targetParams(deps.Config)...)
	return &Operator{
		Name:    "replace-word",
		Summary: "Replace a whole word inside review bodies",
		Params:  params,
		Run: func(ctx context.Context, args Args) (Result, error) {
			t, err := app.ReplaceWord(args.String("search"), args.String("replace"))
			if err != nil {
				return Result{}, err
			}
			return runTransform(ctx, deps, args, t)
		},
	}
}

func runTransform(ctx context.Context, deps Deps, args Args, t app.Transform) (Result, error) {
	target, closeFn, err := openTarget(deps, args)
	if err != nil {
		return Result{}, err
	}
	defer closeFn()

	sum, err := app.ApplyTransform(ctx, target, t, args.Bool("dry-run"))
	if err != nil {
		return Result{}, err
	}
	return Result{DryRun: args.Bool("dry-run"), Change: &sum}, nil
}

// openTarget resolves the CSV-or-database target of a transform invocation.
func openTarget(deps Deps, args Args) (domain.ReviewTarget, func(), error) {
	if path := args.String("csv"); path != "" {
		return csvfile.Target{Path: path}, func() {}, nil
	}
	if args.Int("post-id") == 0 {
		return nil, nil, &domain.InvalidParameterError{Name: "csv", Reason: "provide either csv or post-id"}
	}
	db, repo, err := openRepo(deps, args)
	if err != nil {
		return nil, nil, err
	}
	target := mysqlrepo.NewReviewsTarget(repo, domain.InsertOptions{PostID: int64(args.Int("post-id"))})
	return target, func() { _ = db.Close() }, nil
}

func openRepo(deps Deps, args Args) (*sql.DB, *mysqlrepo.Repo, error) {
	dsn := shared.DSN(args.String("host"), args.String("user"), args.String("password"), args.String("db"))
	db, err := deps.OpenDB(dsn)
	if err != nil {
		return nil, nil, err
	}
	repo, err := mysqlrepo.New(db, args.String("prefix"))
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, repo, nil
}
