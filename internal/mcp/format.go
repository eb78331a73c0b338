package mcp

import (
	"fmt"
	"strings"

	"github.com/codexlab/codexcore/internal/index"
)

// FormatQueryResponse renders a query response as markdown: a header
// naming the query and hit count, followed by one numbered block per hit
// with its file position, score, and snippet.
func FormatQueryResponse(response index.QueryResponse) string {
	if len(response.Hits) == 0 {
		return fmt.Sprintf("No results found for %q above confidence %.2f", response.Query, response.ConfidenceMin)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Results for %q\n\n", response.Query)
	fmt.Fprintf(&sb, "Found %d hit", len(response.Hits))
	if len(response.Hits) != 1 {
		sb.WriteString("s")
	}
	fmt.Fprintf(&sb, " above confidence %.2f\n\n", response.ConfidenceMin)

	for _, hit := range response.Hits {
		formatHit(&sb, hit)
	}

	return sb.String()
}

func formatHit(sb *strings.Builder, hit index.QueryHit) {
	fmt.Fprintf(sb, "### %d. %s:%d-%d (score: %.2f)\n\n", hit.Rank, hit.FilePath, hit.StartLine, hit.EndLine, hit.Score)
	fmt.Fprintf(sb, "```\n%s\n```\n\n", hit.Snippet)
}
