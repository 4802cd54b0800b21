// Package mathwiki crawls competition math problems from a MediaWiki site,
// turns each problem page into a normalized record and loads the records
// into a hierarchical document store.
package mathwiki

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/docutag/mathwiki/answer"
	"github.com/docutag/mathwiki/assemble"
	"github.com/docutag/mathwiki/competitions"
	"github.com/docutag/mathwiki/fetch"
	"github.com/docutag/mathwiki/metrics"
	"github.com/docutag/mathwiki/models"
	"github.com/docutag/mathwiki/segment"
)

const tracerName = "github.com/docutag/mathwiki"

// Config contains scraper configuration
type Config struct {
	Fetch          fetch.Config
	Segment        segment.Config
	Assemble       assemble.Config
	Delay          time.Duration // Minimum gap between consecutive page loads
	MaxRetries     int           // Retries per page for retryable fetch errors
	RetryInterval  time.Duration // First retry wait, doubled on every attempt
	AnswerKeyTitle string        // Anchor text that marks the answer key link
}

// DefaultConfig returns default scraper configuration
func DefaultConfig() Config {
	return Config{
		Fetch:          fetch.DefaultConfig(),
		Segment:        segment.DefaultConfig(),
		Assemble:       assemble.DefaultConfig(),
		Delay:          500 * time.Millisecond,
		MaxRetries:     3,
		RetryInterval:  time.Second,
		AnswerKeyTitle: "answer key",
	}
}

// Deps are the optional collaborators of a Scraper
type Deps struct {
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	TracerProvider trace.TracerProvider // Defaults to the global provider
}

// CrawlOptions narrows a crawl. Zero values mean no bound.
type CrawlOptions struct {
	FromYear int
	ToYear   int
	Problems []int // Only these problem numbers
}

func (o CrawlOptions) includesYear(year int) bool {
	if o.FromYear > 0 && year < o.FromYear {
		return false
	}
	if o.ToYear > 0 && year > o.ToYear {
		return false
	}
	return true
}

func (o CrawlOptions) includesProblem(n int) bool {
	if len(o.Problems) == 0 {
		return true
	}
	for _, p := range o.Problems {
		if p == n {
			return true
		}
	}
	return false
}

// Scraper owns the single browsing session of a crawl. It visits pages one at
// a time and must not be shared between goroutines.
type Scraper struct {
	config    Config
	session   *fetch.Session
	segmenter *segment.Segmenter
	assembler *assemble.Assembler
	limiter   *rate.Limiter
	logger    *zap.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// New opens a browsing session
func New(config Config, deps Deps) (*Scraper, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.AnswerKeyTitle == "" {
		config.AnswerKeyTitle = DefaultConfig().AnswerKeyTitle
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = DefaultConfig().RetryInterval
	}

	session, err := fetch.NewSession(config.Fetch, logger.Named("fetch"))
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	limit := rate.Inf
	if config.Delay > 0 {
		limit = rate.Every(config.Delay)
	}

	provider := deps.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}

	return &Scraper{
		config:    config,
		session:   session,
		segmenter: segment.New(config.Segment),
		assembler: assemble.New(config.Assemble, logger.Named("assemble")),
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
		metrics:   deps.Metrics,
		tracer:    provider.Tracer(tracerName),
	}, nil
}

// Close releases the browsing session
func (s *Scraper) Close() error {
	return s.session.Close()
}

// WithScraper opens a scraper, runs fn and closes the scraper again, also
// when fn fails
func WithScraper(ctx context.Context, config Config, deps Deps, fn func(context.Context, *Scraper) error) (err error) {
	s, err := New(config, deps)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ctx, s)
}

// Crawl scrapes every exam year of a competition linked from its index page.
// Failures are isolated per year and per problem; the dataset holds whatever
// could be scraped. Only a failed index page or a cancelled context is
// returned as an error, the latter together with the partial dataset.
func (s *Scraper) Crawl(ctx context.Context, comp competitions.Competition, opts CrawlOptions) (*models.Dataset, error) {
	runID := uuid.New().String()
	logger := s.logger.With(zap.String("run_id", runID), zap.String("competition", comp.ID))

	ctx, span := s.tracer.Start(ctx, "mathwiki.crawl", trace.WithAttributes(
		attribute.String("competition", comp.ID),
		attribute.String("run_id", runID),
	))
	defer span.End()

	ds := &models.Dataset{
		CompetitionID:   comp.ID,
		CompetitionName: comp.Name,
		RunID:           runID,
		Exams:           []models.Exam{},
	}

	years, err := s.discoverYears(ctx, comp, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "index page failed")
		return nil, err
	}
	logger.Info("crawl started", zap.Int("years", len(years)))

	for _, link := range years {
		exam, err := s.crawlExam(ctx, comp, link, opts, logger)
		if ctx.Err() != nil {
			// Keep the problems of the interrupted exam
			if len(exam.Problems) > 0 {
				ds.Exams = append(ds.Exams, exam)
			}
			span.SetStatus(codes.Error, "cancelled")
			return ds, ctx.Err()
		}
		if err != nil {
			logger.Error("exam skipped", zap.Int("year", link.Year), zap.Error(err))
			continue
		}
		ds.Exams = append(ds.Exams, exam)
	}

	now := time.Now().UTC()
	ds.CrawledAt = &now

	summary := models.Summarize(ds)
	logger.Info("crawl finished",
		zap.Int("exams", summary.Exams),
		zap.Int("problems", summary.Problems),
		zap.Int("with_answers", summary.WithAnswers),
		zap.Int("with_choices", summary.WithChoices),
	)
	return ds, nil
}

// discoverYears reads the index page. When it cannot be loaded but the caller
// gave both year bounds, the conventional exam URLs are used instead.
func (s *Scraper) discoverYears(ctx context.Context, comp competitions.Competition, opts CrawlOptions) ([]yearLink, error) {
	doc, err := s.load(ctx, comp.IndexURL)
	if err != nil {
		if ctx.Err() != nil || opts.FromYear <= 0 || opts.ToYear < opts.FromYear || comp.ExamTitle == "" {
			return nil, fmt.Errorf("failed to load index page: %w", err)
		}
		s.logger.Warn("index page unavailable, using conventional exam URLs",
			zap.String("url", comp.IndexURL),
			zap.Error(err),
		)
		var links []yearLink
		for y := opts.FromYear; y <= opts.ToYear; y++ {
			links = append(links, yearLink{Year: y, URL: comp.ExamURL(y)})
		}
		return links, nil
	}

	var links []yearLink
	for _, link := range yearLinks(doc, comp) {
		if opts.includesYear(link.Year) {
			links = append(links, link)
		}
	}
	return links, nil
}

// crawlExam scrapes one exam year: its answer key first, then every problem
// in ascending order
func (s *Scraper) crawlExam(ctx context.Context, comp competitions.Competition, link yearLink, opts CrawlOptions, logger *zap.Logger) (models.Exam, error) {
	ctx, span := s.tracer.Start(ctx, "mathwiki.exam", trace.WithAttributes(attribute.Int("year", link.Year)))
	defer span.End()

	logger = logger.With(zap.Int("year", link.Year))
	exam := models.Exam{
		Year:      link.Year,
		SourceURL: link.URL,
		Problems:  []models.Problem{},
	}

	doc, err := s.load(ctx, link.URL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "exam page failed")
		return exam, err
	}

	// Problem links come from the exam page; read them before the session
	// moves on to the answer key
	problems := problemLinks(doc, comp.ProblemCount)

	keyURL := answerKeyLink(doc, s.config.AnswerKeyTitle)
	if keyURL == "" && comp.AnswerKeyTitle != "" {
		keyURL = comp.AnswerKeyURL(link.Year)
		logger.Debug("no answer key link found, trying conventional URL", zap.String("url", keyURL))
	}

	var key models.AnswerKey
	if keyURL != "" {
		key, err = s.ScrapeAnswerKey(ctx, keyURL)
		if err != nil {
			logger.Warn("answer key unavailable", zap.String("url", keyURL), zap.Error(err))
		} else {
			exam.AnswerKeyURL = keyURL
		}
	} else {
		logger.Warn("no answer key link found")
	}

	if len(problems) == 0 && comp.ExamTitle != "" {
		logger.Warn("no problem links found, using conventional problem URLs", zap.String("url", link.URL))
		for n := 1; n <= comp.ProblemCount; n++ {
			problems = append(problems, problemLink{Number: n, URL: comp.ProblemURL(link.Year, n)})
		}
	}

	for _, pl := range problems {
		if !opts.includesProblem(pl.Number) {
			continue
		}
		p, err := s.scrapeProblem(ctx, pl, key)
		if ctx.Err() != nil {
			exam.TotalProblems = len(exam.Problems)
			return exam, ctx.Err()
		}
		if err != nil {
			s.metrics.ProblemExtracted("failed")
			logger.Error("problem skipped",
				zap.Int("problem", pl.Number),
				zap.String("url", pl.URL),
				zap.Error(err),
			)
			continue
		}
		exam.Problems = append(exam.Problems, p)
	}

	// Numbers are the addressing key; keep them ascending whatever the page order was
	sort.Slice(exam.Problems, func(i, j int) bool {
		return exam.Problems[i].ProblemNumber < exam.Problems[j].ProblemNumber
	})
	exam.TotalProblems = len(exam.Problems)

	logger.Info("exam scraped",
		zap.Int("problems", len(exam.Problems)),
		zap.Int("answer_key_entries", len(key)),
	)
	return exam, nil
}

// scrapeProblem loads, segments and assembles one problem page
func (s *Scraper) scrapeProblem(ctx context.Context, link problemLink, key models.AnswerKey) (models.Problem, error) {
	ctx, span := s.tracer.Start(ctx, "mathwiki.problem", trace.WithAttributes(
		attribute.Int("problem", link.Number),
		attribute.String("url", link.URL),
	))
	defer span.End()

	doc, err := s.load(ctx, link.URL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return models.Problem{}, err
	}

	sections, err := s.segmenter.Segment(doc.Doc)
	if err != nil {
		var extractErr *segment.ExtractionError
		if errors.As(err, &extractErr) && extractErr.URL == "" {
			extractErr.URL = doc.URL.String()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "segmentation failed")
		return models.Problem{}, err
	}

	p, err := s.assembler.Assemble(assemble.Input{
		Number:    link.Number,
		PageURL:   doc.URL.String(),
		Sections:  sections,
		AnswerKey: key,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assembly failed")
		return models.Problem{}, err
	}

	if !doc.Ready {
		p.Warnings = append(p.Warnings, models.WarningPageNotReady)
	}

	conflict := false
	for _, w := range p.Warnings {
		if w == models.WarningAnswerConflict {
			conflict = true
		}
	}
	s.metrics.AnswerResolved(p.AnswerSource, conflict)
	s.metrics.ProblemExtracted("ok")
	span.SetAttributes(attribute.String("answer_source", p.AnswerSource))

	return p, nil
}

// ScrapeAnswerKey loads an answer key page and parses it
func (s *Scraper) ScrapeAnswerKey(ctx context.Context, keyURL string) (models.AnswerKey, error) {
	doc, err := s.load(ctx, keyURL)
	if err != nil {
		return nil, err
	}
	key := answer.ParseKeyDocument(doc.Doc)
	if len(key) == 0 {
		return nil, &segment.ExtractionError{URL: doc.URL.String(), Reason: "answer key page lists no answers"}
	}
	return key, nil
}

// load waits for the politeness limiter and loads a page, retrying retryable
// fetch errors with exponential backoff
func (s *Scraper) load(ctx context.Context, pageURL string) (*fetch.Document, error) {
	var doc *fetch.Document

	operation := func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		start := time.Now()
		d, err := s.session.Load(ctx, pageURL)
		if err != nil {
			s.metrics.PageFetched("error", time.Since(start))
			var fetchErr *fetch.FetchError
			if errors.As(err, &fetchErr) && fetchErr.Retryable() {
				return err
			}
			return backoff.Permanent(err)
		}
		result := "ok"
		if !d.Ready {
			result = "not_ready"
		}
		s.metrics.PageFetched(result, time.Since(start))
		doc = d
		return nil
	}

	notify := func(err error, wait time.Duration) {
		s.metrics.FetchRetried()
		s.logger.Warn("page load failed, retrying",
			zap.String("url", pageURL),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(operation, s.backOff(ctx), notify); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Scraper) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.config.RetryInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.config.MaxRetries)), ctx)
}
