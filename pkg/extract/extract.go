// Package extract turns repository content into graph records. Each
// extractor tags what it writes with its own source; failures to read
// remote content are reported as file statuses and never abort a build.
package extract

import (
	"context"
	"errors"
	"strings"

	"github.com/OFFIS-RIT/dglink/pkg/common"
	"github.com/OFFIS-RIT/dglink/pkg/graph"
	"github.com/OFFIS-RIT/dglink/pkg/loader"
	"github.com/OFFIS-RIT/dglink/pkg/logger"
)

// Extractor adds what it knows about one project to g.
type Extractor interface {
	Source() string
	Extract(ctx context.Context, projectID string, g *graph.Graph) ([]common.FileStatus, error)
}

// StudyURL links a project to its portal page. base ends in the query
// parameter name, e.g. ".../StudyDetails?studyId".
func StudyURL(base, projectID string) string {
	if base == "" {
		return ""
	}
	return base + "=" + projectID
}

// fetchStatus converts a failed fetch into a status entry. Context errors
// are passed through so a cancelled build stops.
func fetchStatus(ctx context.Context, projectID, fileID, path string, err error) (common.FileStatus, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return common.FileStatus{}, ctxErr
	}
	reason := common.ReasonFailed
	if errors.Is(err, loader.ErrLocked) {
		reason = common.ReasonLocked
	}
	logger.Warn("[Extract] Could not fetch", "project", projectID, "path", path, "reason", reason, "err", err)
	return common.FileStatus{
		ProjectID:   projectID,
		FileID:      fileID,
		FilePath:    path,
		Sheet:       "all",
		Processable: false,
		Reason:      reason,
	}, nil
}

// listFiles returns the files of a project that keep accepts. A failed
// listing is reported as a status.
func listFiles(ctx context.Context, repo loader.Repository, projectID string, keep func(loader.FileRef) bool) ([]loader.FileRef, []common.FileStatus, error) {
	files, err := repo.ListFiles(ctx, projectID)
	if errors.Is(err, loader.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		st, err := fetchStatus(ctx, projectID, projectID, "files", err)
		if err != nil {
			return nil, nil, err
		}
		return nil, []common.FileStatus{st}, nil
	}
	var out []loader.FileRef
	for _, f := range files {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out, nil, nil
}

// fetchContent reads f unless it is larger than maxSize. When the file is
// skipped the returned status says why and the content is nil.
func fetchContent(ctx context.Context, repo loader.Repository, projectID string, f loader.FileRef, maxSize int64) ([]byte, *common.FileStatus, error) {
	if f.Size > maxSize {
		st := sheetStatus(projectID, f, "all", false, common.ReasonUnsupported)
		return nil, &st, nil
	}
	content, err := repo.FetchFile(ctx, f)
	if err != nil {
		st, err := fetchStatus(ctx, projectID, "_", f.Path, err)
		if err != nil {
			return nil, nil, err
		}
		return nil, &st, nil
	}
	if int64(len(content)) > maxSize {
		st := sheetStatus(projectID, f, "all", false, common.ReasonUnsupported)
		return nil, &st, nil
	}
	return content, nil, nil
}

var quoteStripper = strings.NewReplacer(`"`, "", `'`, "")

func clean(v string) string {
	return strings.TrimSpace(quoteStripper.Replace(v))
}
