package casjobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/errors"
)

// driveEntry is one file in a drive container listing.
type driveEntry struct {
	Path string `json:"path"`
}

// driveListing is the response of a container directory listing.
type driveListing struct {
	Contents []driveEntry `json:"contents"`
}

// RequestTableExport asks CasJobs to export a MyDB table as CSV into the
// drive container. The export form wants the query, the drive target and
// a Referer naming the table page it was posted from.
func (c *Client) RequestTableExport(ctx context.Context, table string) error {
	endpoint := fmt.Sprintf("%s/mydb/tables/%s/export", c.baseURL, url.PathEscape(table))

	form := url.Values{}
	form.Set("customQuery", "SELECT * FROM "+table)
	form.Set("scidrivePath", "/"+Container)
	form.Set("exportType", "CSV")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", endpoint)

	resp, err := c.do(req)
	if err != nil {
		return &errors.CasJobsError{Op: "export", Message: "export request for " + table + " failed", Err: err}
	}
	resp.Body.Close()

	c.logger.Debug("requested table export", slog.String("table", table))
	return nil
}

// DownloadTable waits for a table export to appear in the drive container,
// downloads it to destDir/<table>.csv, and best-effort deletes the remote
// copy. The readiness probes follow the client's poll configuration.
func (c *Client) DownloadTable(ctx context.Context, table, destDir string) (string, error) {
	target := fmt.Sprintf("%s/%s_%s.csv", Container, table, c.username)

	result := errors.WithRetryContext(ctx, c.pollCfg, func(ctx context.Context) (string, error) {
		listing, err := c.listContainer(ctx)
		if err != nil {
			return "", err
		}
		for _, entry := range listing.Contents {
			if strings.TrimSpace(entry.Path) == target {
				return entry.Path, nil
			}
		}
		return "", errors.Transient(
			fmt.Errorf("%s not yet in %s", target, Container),
			"table export not ready")
	})
	if result.Err != nil {
		return "", &errors.CasJobsError{Op: "download", Message: "export of " + table + " never arrived", Err: result.Err}
	}

	data, err := c.driveGet(ctx, target)
	if err != nil {
		return "", &errors.CasJobsError{Op: "download", Message: "fetch " + target, Err: err}
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}
	path := filepath.Join(destDir, table+".csv")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write table csv: %w", err)
	}

	if err := c.driveDelete(ctx, target); err != nil {
		c.logger.Warn("could not delete remote export",
			slog.String("path", target),
			slog.String("error", err.Error()),
		)
	}

	c.logger.Debug("downloaded table export",
		slog.String("table", table),
		slog.String("path", path),
		slog.Int("attempts", result.Attempts),
	)
	return path, nil
}

// DownloadTables downloads several table exports concurrently. The
// returned paths are ordered like tables. The first failure cancels the
// remaining downloads.
func (c *Client) DownloadTables(ctx context.Context, tables []string, destDir string) ([]string, error) {
	g, ctx := errgroup.WithContext(ctx)
	paths := make([]string, len(tables))

	for i, table := range tables {
		i, table := i, table
		g.Go(func() error {
			path, err := c.DownloadTable(ctx, table, destDir)
			if err != nil {
				return err
			}
			paths[i] = path
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// listContainer fetches the drive container listing.
func (c *Client) listContainer(ctx context.Context) (driveListing, error) {
	endpoint := fmt.Sprintf("%s/directory/%s", c.driveURL, Container)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return driveListing{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return driveListing{}, err
	}
	defer resp.Body.Close()

	var listing driveListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return driveListing{}, fmt.Errorf("decode listing: %w", err)
	}
	return listing, nil
}

// driveGet fetches a file from the drive service.
func (c *Client) driveGet(ctx context.Context, path string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/file/%s", c.driveURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// driveDelete removes a file from the drive service.
func (c *Client) driveDelete(ctx context.Context, path string) error {
	endpoint := fmt.Sprintf("%s/file/%s", c.driveURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
