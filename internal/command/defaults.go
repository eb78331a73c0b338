package command

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	cxerrors "github.com/codexlab/codexcore/internal/errors"
	"github.com/codexlab/codexcore/internal/index"
	"github.com/codexlab/codexcore/internal/memory"
)

// MemoryRuntime bundles the memory subsystem handles a Context needs to
// serve memory_suggest / memory_fetch / memory.settings.
type MemoryRuntime struct {
	Store     *memory.Store
	Retriever *memory.Retriever
	Settings  *memory.SettingsManager
}

// RegisterDefaults wires the command verb surface: the index.* family,
// search-code and its confidence knob, the memory lookup verbs, and the
// commands.list introspection verb. Memory verbs fail with InvalidRequest
// until a caller attaches a MemoryRuntime via Context.WithMemory.
func RegisterDefaults(r *Registry) {
	r.RegisterWithDescriptor("index.build", "rebuild the project's semantic index", handleIndexBuild)
	r.RegisterWithDescriptor("index.query", "query the semantic index, returning ranked hits", handleIndexQuery)
	r.RegisterWithDescriptor("index.status", "show the index manifest and build analytics", handleIndexStatus)
	r.RegisterWithDescriptor("index.verify", "check the persisted index for internal consistency", handleIndexVerify)
	r.RegisterWithDescriptor("index.clean", "remove the project's persisted index", handleIndexClean)
	r.RegisterWithDescriptor("search-code", "search the index, applying the confidence floor", handleSearchCode)
	r.RegisterWithDescriptor("search.confidence", "read or write the search confidence floor", handleSearchConfidence)
	r.RegisterWithDescriptor("memory_suggest", "suggest relevant memory records for free text", handleMemorySuggest)
	r.RegisterWithDescriptor("memory_fetch", "fetch memory records by id", handleMemoryFetch)
	r.RegisterWithDescriptor("memory.settings", "read or replace the memory subsystem's settings", handleMemorySettings)
	r.RegisterWithDescriptor("commands.list", "list every registered command with its summary", handleCommandsList(r))
}

func handleIndexBuild(ctx context.Context, cc *Context, args []string) (Result, error) {
	jsonMode, _ := extractBoolFlag(args, "--json")

	source, err := index.NewScannerSource()
	if err != nil {
		return Result{}, cxerrors.IOError("open project scanner", err)
	}
	if cc.Submodules != nil {
		source = source.WithSubmodules(cc.Submodules)
	}
	builder := index.NewBuilder(index.BuildOptions{
		ProjectRoot: cc.ProjectRoot,
		Chunking:    cc.Chunking,
		Embedder:    cc.Embedder,
		Source:      source,
	})
	summary, err := builder.Build(ctx)
	if err != nil {
		return Result{}, err
	}
	if jsonMode {
		return JSONResult(summary), nil
	}
	return TextResult(fmt.Sprintf("indexed %d chunks across %d files with %s (%d dimensions, %d reused)",
		summary.TotalChunks, summary.TotalFiles, summary.EmbeddingModel, summary.EmbeddingDim, summary.ReusedChunks)), nil
}

func handleIndexQuery(ctx context.Context, cc *Context, args []string) (Result, error) {
	text, topK, err := queryTextAndTopK(args)
	if err != nil {
		return Result{}, err
	}
	querier := index.NewQuerier(cc.ProjectRoot)
	response, err := querier.Query(ctx, text, index.QueryOptions{
		ProjectRoot:   cc.ProjectRoot,
		Embedder:      cc.Embedder,
		TopK:          topK,
		ConfidenceMin: cc.Confidence.Get(),
	})
	if err != nil {
		return Result{}, err
	}
	return JSONResult(response), nil
}

func handleIndexStatus(ctx context.Context, cc *Context, args []string) (Result, error) {
	manifest, analytics, err := index.Status(cc.ProjectRoot)
	if err != nil {
		return Result{}, err
	}
	return JSONResult(struct {
		Manifest  index.Manifest  `json:"manifest"`
		Analytics index.Analytics `json:"analytics"`
	}{manifest, analytics}), nil
}

func handleIndexVerify(ctx context.Context, cc *Context, args []string) (Result, error) {
	report, err := index.Verify(cc.ProjectRoot)
	if err != nil {
		return Result{}, err
	}
	return JSONResult(report), nil
}

func handleIndexClean(ctx context.Context, cc *Context, args []string) (Result, error) {
	if err := index.Clean(cc.ProjectRoot); err != nil {
		return Result{}, cxerrors.IOError("clean index", err)
	}
	return Unit(), nil
}

func handleSearchCode(ctx context.Context, cc *Context, args []string) (Result, error) {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return Result{}, cxerrors.InvalidRequest("search-code requires a query string", nil)
	}
	querier := index.NewQuerier(cc.ProjectRoot)
	response, err := querier.Query(ctx, text, index.QueryOptions{
		ProjectRoot:   cc.ProjectRoot,
		Embedder:      cc.Embedder,
		ConfidenceMin: cc.Confidence.Get(),
	})
	if err != nil {
		return Result{}, err
	}
	return JSONResult(response), nil
}

func handleSearchConfidence(ctx context.Context, cc *Context, args []string) (Result, error) {
	if len(args) == 0 || args[0] == "get" {
		return JSONResult(confidenceReading{cc.Confidence.Get()}), nil
	}
	if args[0] != "set" {
		return Result{}, cxerrors.InvalidRequest(fmt.Sprintf("unknown search.confidence subcommand %q", args[0]), nil)
	}
	if len(args) < 2 {
		return Result{}, cxerrors.InvalidRequest("search.confidence set requires a float value", nil)
	}
	value, err := strconv.ParseFloat(args[1], 32)
	if err != nil {
		return Result{}, cxerrors.InvalidRequest(fmt.Sprintf("%q is not a number", args[1]), err)
	}
	if value < 0 || value > 1 {
		return Result{}, cxerrors.InvalidRequest("confidence must be between 0 and 1", nil)
	}
	cc.Confidence.Set(float32(value))
	return JSONResult(confidenceReading{cc.Confidence.Get()}), nil
}

type confidenceReading struct {
	Confidence float32 `json:"confidence"`
}

func handleMemorySuggest(ctx context.Context, cc *Context, args []string) (Result, error) {
	if cc.Memory == nil || cc.Memory.Retriever == nil {
		return Result{}, cxerrors.New(cxerrors.CodeInvalidRequest, "memory is not enabled for this context", nil)
	}
	query, hasQuery, rest := extractFlag(args, "--query")
	if !hasQuery || strings.TrimSpace(query) == "" {
		return Result{}, cxerrors.InvalidRequest("memory_suggest requires --query <text>", nil)
	}
	topKRaw, hasTopK, _ := extractFlag(rest, "--top-k")
	var topK *int
	if hasTopK {
		n, err := strconv.Atoi(topKRaw)
		if err != nil {
			return Result{}, cxerrors.InvalidRequest(fmt.Sprintf("--top-k value %q is not an integer", topKRaw), err)
		}
		topK = &n
	}
	retrieval, err := cc.Memory.Retriever.RetrieveForText(ctx, query, topK)
	if err != nil {
		return Result{}, err
	}
	return JSONResult(struct {
		PreviewMode  memory.PreviewMode  `json:"preview_mode"`
		Candidates   []memory.MemoryHit  `json:"candidates"`
		AutoSelected []memory.MemoryHit  `json:"auto_selected,omitempty"`
	}{retrieval.PreviewMode(), retrieval.Candidates, retrieval.AutoSelected()}), nil
}

func handleMemoryFetch(ctx context.Context, cc *Context, args []string) (Result, error) {
	if cc.Memory == nil || cc.Memory.Store == nil {
		return Result{}, cxerrors.New(cxerrors.CodeInvalidRequest, "memory is not enabled for this context", nil)
	}

	var rawIDs []string
	if id, ok, _ := extractFlag(args, "--id"); ok {
		rawIDs = append(rawIDs, id)
	}
	if ids, ok, _ := extractFlag(args, "--ids"); ok {
		rawIDs = append(rawIDs, strings.Split(ids, ",")...)
	}
	if len(rawIDs) == 0 {
		return Result{}, cxerrors.InvalidRequest("memory_fetch requires --id or --ids", nil)
	}

	parsed := make([]uuid.UUID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return Result{}, cxerrors.InvalidRequest(fmt.Sprintf("%q is not a record id", raw), err)
		}
		parsed = append(parsed, id)
	}

	records := cc.Memory.Store.FetchByIDs(parsed)
	if len(records) == 0 {
		return TextResult("no memory records found for the given id(s)"), nil
	}
	var b strings.Builder
	for _, r := range records {
		fmt.Fprintf(&b, "%s (%.2f) %s\n", r.RecordID, r.Confidence, r.Summary)
	}
	return TextResult(strings.TrimRight(b.String(), "\n")), nil
}

func handleMemorySettings(ctx context.Context, cc *Context, args []string) (Result, error) {
	if cc.Memory == nil || cc.Memory.Settings == nil {
		return Result{}, cxerrors.New(cxerrors.CodeInvalidRequest, "memory is not enabled for this context", nil)
	}
	if len(args) == 0 || args[0] == "get" {
		return JSONResult(cc.Memory.Settings.Get()), nil
	}
	if args[0] != "set-json" {
		return Result{}, cxerrors.InvalidRequest(fmt.Sprintf("unknown memory.settings subcommand %q", args[0]), nil)
	}
	if len(args) < 2 {
		return Result{}, cxerrors.InvalidRequest("memory.settings set-json requires a json argument", nil)
	}
	var settings memory.MemorySettings
	if err := json.Unmarshal([]byte(args[1]), &settings); err != nil {
		return Result{}, cxerrors.InvalidRequest("memory.settings set-json argument is not valid json", err)
	}
	updated, err := cc.Memory.Settings.Set(settings)
	if err != nil {
		return Result{}, err
	}
	return JSONResult(updated), nil
}

func handleCommandsList(r *Registry) Handler {
	return func(ctx context.Context, cc *Context, args []string) (Result, error) {
		names := r.Names()
		entries := make([]struct {
			Name    string `json:"name"`
			Summary string `json:"summary,omitempty"`
		}, 0, len(names))
		for _, name := range names {
			entry := struct {
				Name    string `json:"name"`
				Summary string `json:"summary,omitempty"`
			}{Name: name}
			if descriptor, ok := r.Describe(name); ok {
				entry.Summary = descriptor.Summary
			}
			entries = append(entries, entry)
		}
		return JSONResult(entries), nil
	}
}

// extractFlag pulls a "--name value" pair out of args, returning the value,
// whether it was present, and the remaining args with both tokens removed.
func extractFlag(args []string, name string) (value string, ok bool, rest []string) {
	rest = make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if args[i] == name {
			if i+1 < len(args) {
				value = args[i+1]
				ok = true
				i++
			}
			continue
		}
		rest = append(rest, args[i])
	}
	return value, ok, rest
}

// extractBoolFlag pulls a bare "--name" flag out of args.
func extractBoolFlag(args []string, name string) (present bool, rest []string) {
	rest = make([]string, 0, len(args))
	for _, a := range args {
		if a == name {
			present = true
			continue
		}
		rest = append(rest, a)
	}
	return present, rest
}

// queryTextAndTopK splits an optional "--top-k N" flag out of an index.query
// invocation, joining the remaining positional args into the query text.
func queryTextAndTopK(args []string) (text string, topK int, err error) {
	topKRaw, hasTopK, rest := extractFlag(args, "--top-k")
	if hasTopK {
		topK, err = strconv.Atoi(topKRaw)
		if err != nil {
			return "", 0, cxerrors.InvalidRequest(fmt.Sprintf("--top-k value %q is not an integer", topKRaw), err)
		}
	}
	text = strings.TrimSpace(strings.Join(rest, " "))
	if text == "" {
		return "", 0, cxerrors.InvalidRequest("index.query requires a query string", nil)
	}
	return text, topK, nil
}
