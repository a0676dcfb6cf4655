package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-media-service/http/controller/dto"
	"github.com/tnqbao/gau-media-service/infra/produce"
	"github.com/tnqbao/gau-media-service/utils"
)

// EnqueueCleanup publishes a cleanup sweep for the consumer to run.
func (ctrl *Controller) EnqueueCleanup(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CleanupRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Cleanup] Failed to bind JSON: %v", err)
		utils.JSON400(c, "Invalid request payload")
		return
	}

	job := produce.CleanupJobMessage{
		Orphaned:    req.Orphaned || req.All,
		Missing:     req.Missing || req.All,
		Unused:      req.Unused || req.All,
		DryRun:      req.DryRun,
		RequestedBy: c.ClientIP(),
	}
	if !job.Orphaned && !job.Missing && !job.Unused {
		utils.JSON400(c, "Specify at least one of orphaned, missing, unused or all")
		return
	}

	if ctrl.Infra.Produce == nil || ctrl.Infra.Produce.Cleanup == nil {
		utils.JSON500(c, "Cleanup queue is not available")
		return
	}
	if err := ctrl.Infra.Produce.Cleanup.PublishCleanupJob(ctx, job); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Cleanup] Failed to publish cleanup job: %v", err)
		utils.JSON500(c, "Failed to enqueue cleanup job")
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Cleanup] Enqueued cleanup job (orphaned=%t missing=%t unused=%t dry_run=%t)",
		job.Orphaned, job.Missing, job.Unused, job.DryRun)
	utils.JSON202(c, gin.H{
		"message": "Cleanup job enqueued",
		"job":     job,
	})
}

func (ctrl *Controller) Health(c *gin.Context) {
	failures := ctrl.Infra.Health(c.Request.Context())
	if len(failures) > 0 {
		utils.JSON503(c, gin.H{"status": "degraded", "failures": failures})
		return
	}
	utils.JSON200(c, gin.H{
		"status": "ok",
		"disks":  ctrl.Infra.Disks.Names(),
		"kinds":  mediaKinds(),
	})
}
