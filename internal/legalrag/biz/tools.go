package biz

import (
	"context"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/kart-io/legal-rag/pkg/errors"
)

// ToolKind 可被外部编排调用的工具类型，取值封闭。
type ToolKind int

const (
	ToolSearch ToolKind = iota
	ToolAsk
	ToolOptimize
	ToolAnalyze
	ToolCompare
	ToolSuggest

	toolKindCount
)

var toolNames = [toolKindCount]string{
	ToolSearch:   "search",
	ToolAsk:      "ask",
	ToolOptimize: "optimize",
	ToolAnalyze:  "analyze",
	ToolCompare:  "compare",
	ToolSuggest:  "suggest",
}

func (k ToolKind) String() string {
	if k < 0 || k >= toolKindCount {
		return "unknown"
	}
	return toolNames[k]
}

// ParseToolKind 解析工具名，未知名称返回 ErrUnknownTool。
func ParseToolKind(name string) (ToolKind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range toolNames {
		if n == name {
			return ToolKind(k), nil
		}
	}
	return 0, errors.ErrUnknownTool.WithMessagef("unknown tool %q", name)
}

// ToolKinds 返回全部工具类型。
func ToolKinds() []ToolKind {
	kinds := make([]ToolKind, toolKindCount)
	for i := range kinds {
		kinds[i] = ToolKind(i)
	}
	return kinds
}

// ToolHandler 解码 JSON 输入并调用服务。
type ToolHandler func(ctx context.Context, svc Service, input []byte) (any, error)

// toolTable 分发表，每个 ToolKind 必须有对应处理函数。
var toolTable = [toolKindCount]ToolHandler{
	ToolSearch:   searchTool,
	ToolAsk:      askTool,
	ToolOptimize: optimizeTool,
	ToolAnalyze:  analyzeTool,
	ToolCompare:  compareTool,
	ToolSuggest:  suggestTool,
}

// DispatchTool 按工具类型分发调用。
func DispatchTool(ctx context.Context, svc Service, kind ToolKind, input []byte) (any, error) {
	if kind < 0 || kind >= toolKindCount || toolTable[kind] == nil {
		return nil, errors.ErrUnknownTool.WithMessagef("unknown tool %d", int(kind))
	}
	return toolTable[kind](ctx, svc, input)
}

// ToolSearchInput search 工具输入。
type ToolSearchInput struct {
	Query       string   `json:"query"`
	DocumentIDs []string `json:"document_ids"`
	ChunkTypes  []string `json:"chunk_types"`
	Threshold   *float64 `json:"threshold"`
	Limit       int      `json:"limit"`
}

// ToolAskInput ask 工具输入。
type ToolAskInput struct {
	Question               string   `json:"question"`
	DocumentIDs            []string `json:"document_ids"`
	MaxResults             int      `json:"max_results"`
	IncludeCrossReferences bool     `json:"include_cross_references"`
}

// ToolOptimizeInput optimize 工具输入。
type ToolOptimizeInput struct {
	Query   string `json:"query"`
	Context string `json:"context"`
	Mode    string `json:"mode"`
}

// ToolAnalyzeInput analyze 工具输入。
type ToolAnalyzeInput struct {
	Query string `json:"query"`
}

// ToolCompareInput compare 工具输入。
type ToolCompareInput struct {
	DocumentIDs []string `json:"document_ids"`
	Mode        string   `json:"mode"`
}

// ToolSuggestInput suggest 工具输入。
type ToolSuggestInput struct {
	Partial string `json:"partial"`
}

func decodeToolInput(input []byte, v any) error {
	if len(strings.TrimSpace(string(input))) == 0 {
		return errors.ErrValidation.WithMessage("tool input must not be empty")
	}
	if err := sonic.Unmarshal(input, v); err != nil {
		return errors.ErrValidation.WithMessage("invalid tool input").WithCause(err)
	}
	return nil
}

func searchTool(ctx context.Context, svc Service, input []byte) (any, error) {
	var in ToolSearchInput
	if err := decodeToolInput(input, &in); err != nil {
		return nil, err
	}
	return svc.Search(ctx, Query{
		Text:        in.Query,
		DocumentIDs: in.DocumentIDs,
		ChunkTypes:  in.ChunkTypes,
		Threshold:   in.Threshold,
		Limit:       in.Limit,
	})
}

func askTool(ctx context.Context, svc Service, input []byte) (any, error) {
	var in ToolAskInput
	if err := decodeToolInput(input, &in); err != nil {
		return nil, err
	}
	return svc.Ask(ctx, AskRequest{
		Question:               in.Question,
		DocumentIDs:            in.DocumentIDs,
		MaxResults:             in.MaxResults,
		IncludeCrossReferences: in.IncludeCrossReferences,
	})
}

func optimizeTool(ctx context.Context, svc Service, input []byte) (any, error) {
	var in ToolOptimizeInput
	if err := decodeToolInput(input, &in); err != nil {
		return nil, err
	}
	mode, err := ParseOptimizeMode(in.Mode, "")
	if err != nil {
		return nil, err
	}
	return svc.OptimizeQuery(ctx, in.Query, in.Context, mode)
}

func analyzeTool(ctx context.Context, svc Service, input []byte) (any, error) {
	var in ToolAnalyzeInput
	if err := decodeToolInput(input, &in); err != nil {
		return nil, err
	}
	return svc.AnalyzeQueryPerformance(ctx, in.Query)
}

func compareTool(ctx context.Context, svc Service, input []byte) (any, error) {
	var in ToolCompareInput
	if err := decodeToolInput(input, &in); err != nil {
		return nil, err
	}
	mode, err := ParseCompareMode(in.Mode)
	if err != nil {
		return nil, err
	}
	return svc.CompareDocuments(ctx, in.DocumentIDs, mode)
}

func suggestTool(ctx context.Context, svc Service, input []byte) (any, error) {
	var in ToolSuggestInput
	if err := decodeToolInput(input, &in); err != nil {
		return nil, err
	}
	return svc.Suggest(ctx, in.Partial)
}

// toolTimeout 工具调用的默认超时。
const toolTimeout = 60 * time.Second

// RunTool 按名称调用工具，ctx 没有截止时间时附加默认超时。
func RunTool(ctx context.Context, svc Service, name string, input []byte) (any, error) {
	kind, err := ParseToolKind(name)
	if err != nil {
		return nil, err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, toolTimeout)
		defer cancel()
	}
	return DispatchTool(ctx, svc, kind, input)
}
