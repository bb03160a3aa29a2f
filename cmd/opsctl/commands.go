package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"sermon-publisher/ddd/application/cqe"
	"sermon-publisher/ddd/application/dto"
	"sermon-publisher/ddd/domain/vo"
)

// runBulk 持有主机锁，签发管理员令牌并调用服务端批量接口
func (c *commandContext) runBulk(cmd *cobra.Command, op string, body interface{}) error {
	return c.withHostLock(func() error {
		ctx, cancel := context.WithTimeout(cmd.Context(), c.requestTimeout())
		defer cancel()

		server, err := c.resolveServer(ctx)
		if err != nil {
			return err
		}
		token, err := c.adminToken()
		if err != nil {
			return fmt.Errorf("sign admin token: %w", err)
		}
		client := &adminClient{baseURL: server, token: token, http: &http.Client{Timeout: c.requestTimeout()}}
		result, err := client.bulk(ctx, op, body)
		if err != nil {
			return err
		}
		return printResult(cmd, c.opts.json, result)
	})
}

// collectIDs 合并位置参数和 --ids，逗号分隔亦可
func collectIDs(args, flagIDs []string) []string {
	var ids []string
	for _, raw := range append(append([]string{}, args...), flagIDs...) {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

var errNoIDs = errors.New("at least one video id is required (positional or --ids)")

func newApproveCommand(ctx *commandContext) *cobra.Command {
	var (
		ids         []string
		autoProcess bool
		approvedBy  string
	)
	cmd := &cobra.Command{
		Use:   "approve [video-id...]",
		Short: "Approve pending videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := cqe.BulkApproveReq{VideoIDs: collectIDs(args, ids), AutoProcess: autoProcess, ApprovedBy: approvedBy}
			if len(req.VideoIDs) == 0 {
				return errNoIDs
			}
			return ctx.runBulk(cmd, "approve", req)
		},
	}
	cmd.Flags().StringSliceVar(&ids, "ids", nil, "Video ids to approve")
	cmd.Flags().BoolVar(&autoProcess, "auto-process", false, "Queue generation right after approval")
	cmd.Flags().StringVar(&approvedBy, "approved-by", "", "Approver recorded on the videos (defaults to the operator)")
	return cmd
}

func newRejectCommand(ctx *commandContext) *cobra.Command {
	var (
		ids    []string
		reason string
	)
	cmd := &cobra.Command{
		Use:   "reject [video-id...]",
		Short: "Reject videos with a reason",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := cqe.BulkRejectReq{VideoIDs: collectIDs(args, ids), Reason: reason}
			if len(req.VideoIDs) == 0 {
				return errNoIDs
			}
			return ctx.runBulk(cmd, "reject", req)
		},
	}
	cmd.Flags().StringSliceVar(&ids, "ids", nil, "Video ids to reject")
	cmd.Flags().StringVar(&reason, "reason", "", "Rejection reason")
	return cmd
}

func newRetryFailedCommand(ctx *commandContext) *cobra.Command {
	var maxRetries int
	cmd := &cobra.Command{
		Use:   "retry-failed",
		Short: "Re-queue failed videos that still have retries left",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxRetries < 0 {
				return fmt.Errorf("--max-retries must not be negative")
			}
			var body interface{}
			if maxRetries > 0 {
				body = cqe.BulkRetryReq{MaxRetries: maxRetries}
			}
			return ctx.runBulk(cmd, "retry-failed", body)
		},
	}
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, fmt.Sprintf("Skip videos retried this many times (default %d)", vo.MaxRetryCount))
	return cmd
}

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var (
		olderThanDays int
		statuses      []string
		keepFiles     bool
		archive       bool
		noFiles       bool
	)
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete or archive old videos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThanDays < 0 {
				return fmt.Errorf("--older-than-days must not be negative")
			}
			req := cqe.BulkCleanupReq{
				OlderThanDays:          olderThanDays,
				Statuses:               statuses,
				ArchiveInsteadOfDelete: archive,
				NoFiles:                noFiles,
			}
			if keepFiles {
				cleanupFiles := false
				req.CleanupFiles = &cleanupFiles
			}
			return ctx.runBulk(cmd, "cleanup", req)
		},
	}
	cmd.Flags().IntVar(&olderThanDays, "older-than-days", 0, "Only records created before this many days ago (default 30)")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Statuses to clean up (default failed)")
	cmd.Flags().BoolVar(&keepFiles, "keep-files", false, "Keep local and remote artifacts")
	cmd.Flags().BoolVar(&archive, "archive", false, "Archive uploaded videos instead of deleting")
	cmd.Flags().BoolVar(&noFiles, "no-files", false, "Only records whose artifacts are already gone")
	return cmd
}

func newUpdateMetadataCommand(ctx *commandContext) *cobra.Command {
	var (
		ids        []string
		fieldsJSON string
		title      string
		desc       string
		tags       []string
		duration   float64
		resolution string
	)
	cmd := &cobra.Command{
		Use:   "update-metadata [video-id...]",
		Short: "Update display metadata on videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := map[string]interface{}{}
			if fieldsJSON != "" {
				if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
					return fmt.Errorf("parse --fields: %w", err)
				}
			}
			flags := cmd.Flags()
			if flags.Changed("title") {
				fields[vo.MetadataTitle] = title
			}
			if flags.Changed("description") {
				fields[vo.MetadataDescription] = desc
			}
			if flags.Changed("tags") {
				fields[vo.MetadataTags] = tags
			}
			if flags.Changed("duration") {
				fields[vo.MetadataDuration] = duration
			}
			if flags.Changed("resolution") {
				fields[vo.MetadataResolution] = resolution
			}

			req := cqe.BulkUpdateMetadataReq{VideoIDs: collectIDs(args, ids), Fields: vo.FilterMetadataFields(fields)}
			if len(req.VideoIDs) == 0 {
				return errNoIDs
			}
			if len(req.Fields) == 0 {
				return fmt.Errorf("no supported metadata field given (title, description, tags, duration, resolution)")
			}
			return ctx.runBulk(cmd, "update-metadata", req)
		},
	}
	cmd.Flags().StringSliceVar(&ids, "ids", nil, "Video ids to update")
	cmd.Flags().StringVar(&fieldsJSON, "fields", "", `Fields as a JSON object, e.g. {"title":"..."}`)
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&desc, "description", "", "New description")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "New tags")
	cmd.Flags().Float64Var(&duration, "duration", 0, "Duration in seconds")
	cmd.Flags().StringVar(&resolution, "resolution", "", "Resolution, e.g. 1080x1920")
	return cmd
}

func resultRows(result *dto.BulkResultDto) [][]string {
	return [][]string{{
		result.Operation,
		fmt.Sprintf("%d", result.Processed),
		fmt.Sprintf("%d", result.Failed),
		fmt.Sprintf("%d", result.Skipped),
	}}
}
