package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/shopspring/decimal"

	"github.com/tigerroll/sequencer/pkg/sequencer/core/application/usecase"
	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
)

// Handler serves the sequencing routes on top of a JobOperationService.
type Handler struct {
	svc usecase.JobOperationService
}

// NewHandler creates a Handler.
func NewHandler(svc usecase.JobOperationService) *Handler {
	return &Handler{svc: svc}
}

type operationForm struct {
	JobMakeMethodID string `form:"jobMakeMethodId" json:"jobMakeMethodId" binding:"required"`
	Description     string `form:"description" json:"description"`
	WorkCenterID    string `form:"workCenterId" json:"workCenterId"`
	OperationOrder  string `form:"operationOrder" json:"operationOrder"`
	SetupTime       string `form:"setupTime" json:"setupTime"`
	LaborTime       string `form:"laborTime" json:"laborTime"`
	MachineTime     string `form:"machineTime" json:"machineTime"`
	ScrapPercent    string `form:"scrapPercent" json:"scrapPercent"`
	Priority        int    `form:"priority" json:"priority"`
	Position        int    `form:"position" json:"position"`
}

type idForm struct {
	ID string `form:"id" json:"id" binding:"required"`
}

type fieldForm struct {
	Field string `form:"field" json:"field" binding:"required"`
	Value string `form:"value" json:"value"`
}

type stepForm struct {
	Name        string `form:"name" json:"name" binding:"required"`
	Description string `form:"description" json:"description"`
	Type        string `form:"type" json:"type"`
}

type parameterForm struct {
	Key   string `form:"key" json:"key" binding:"required"`
	Value string `form:"value" json:"value"`
}

type toolForm struct {
	ToolID   string `form:"toolId" json:"toolId" binding:"required"`
	Quantity string `form:"quantity" json:"quantity"`
}

type scheduleForm struct {
	ID       string `form:"id" json:"id" binding:"required"`
	ColumnID string `form:"columnId" json:"columnId" binding:"required"`
	Priority int    `form:"priority" json:"priority"`
}

type operationResponse struct {
	ID              string               `json:"id"`
	JobID           string               `json:"jobId"`
	JobMakeMethodID string               `json:"jobMakeMethodId"`
	Description     string               `json:"description"`
	Order           int                  `json:"order"`
	WorkCenterID    string               `json:"workCenterId,omitempty"`
	OperationOrder  string               `json:"operationOrder"`
	SetupTime       decimal.Decimal      `json:"setupTime"`
	LaborTime       decimal.Decimal      `json:"laborTime"`
	MachineTime     decimal.Decimal      `json:"machineTime"`
	ScrapPercent    decimal.Decimal      `json:"scrapPercent"`
	Priority        int                  `json:"priority"`
	DependsOn       []string             `json:"dependsOn"`
	Requirement     *requirementResponse `json:"requirement,omitempty"`
}

type requirementResponse struct {
	InputQuantity               decimal.Decimal `json:"inputQuantity"`
	OutputQuantity              decimal.Decimal `json:"outputQuantity"`
	MaterialQuantity            decimal.Decimal `json:"materialQuantity"`
	AccumulatedMaterialQuantity decimal.Decimal `json:"accumulatedMaterialQuantity"`
	EstimatedHours              decimal.Decimal `json:"estimatedHours"`
	AccumulatedHours            decimal.Decimal `json:"accumulatedHours"`
	CalculatedAt                time.Time       `json:"calculatedAt"`
}

func toOperationResponse(v usecase.OperationView) operationResponse {
	op := v.Operation
	resp := operationResponse{
		ID:              op.ID,
		JobID:           op.JobID,
		JobMakeMethodID: op.JobMakeMethodID,
		Description:     op.Description,
		Order:           op.SortOrder,
		WorkCenterID:    op.WorkCenterID,
		OperationOrder:  string(op.OperationOrder),
		SetupTime:       op.SetupTime,
		LaborTime:       op.LaborTime,
		MachineTime:     op.MachineTime,
		ScrapPercent:    op.ScrapPercent,
		Priority:        op.Priority,
		DependsOn:       op.DependsOn,
	}
	if resp.DependsOn == nil {
		resp.DependsOn = []string{}
	}
	if r := v.Requirement; r != nil {
		resp.Requirement = &requirementResponse{
			InputQuantity:               r.InputQuantity,
			OutputQuantity:              r.OutputQuantity,
			MaterialQuantity:            r.MaterialQuantity,
			AccumulatedMaterialQuantity: r.AccumulatedMaterialQuantity,
			EstimatedHours:              r.EstimatedHours,
			AccumulatedHours:            r.AccumulatedHours,
			CalculatedAt:                r.CalculatedAt,
		}
	}
	return resp
}

// ListOperations returns the job's operations in order.
func (h *Handler) ListOperations(c *gin.Context) {
	views, err := h.svc.ListOperations(c.Request.Context(), actorFrom(c), c.Param("jobId"))
	if err != nil {
		abortWithError(c, err, nil)
		return
	}
	ops := make([]operationResponse, 0, len(views))
	for _, v := range views {
		ops = append(ops, toOperationResponse(v))
	}
	c.JSON(http.StatusOK, gin.H{"operations": ops})
}

// InsertOperation creates an operation in the job.
func (h *Handler) InsertOperation(c *gin.Context) {
	var form operationForm
	if err := c.ShouldBind(&form); err != nil {
		badRequest(c, err.Error())
		return
	}
	in, err := form.toNewOperation(c.Param("jobId"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.svc.InsertOperation(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		abortWithError(c, err, &res)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": res.ID, "success": true, "message": "Operation created"})
}

func (f operationForm) toNewOperation(jobID string) (usecase.NewOperation, error) {
	order, err := model.ParseOperationOrder(f.OperationOrder)
	if err != nil {
		return usecase.NewOperation{}, err
	}
	in := usecase.NewOperation{
		JobID:           jobID,
		JobMakeMethodID: f.JobMakeMethodID,
		Description:     f.Description,
		WorkCenterID:    f.WorkCenterID,
		OperationOrder:  order,
		Priority:        f.Priority,
		Position:        f.Position,
	}
	fields := []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"setupTime", f.SetupTime, &in.SetupTime},
		{"laborTime", f.LaborTime, &in.LaborTime},
		{"machineTime", f.MachineTime, &in.MachineTime},
		{"scrapPercent", f.ScrapPercent, &in.ScrapPercent},
	}
	for _, fd := range fields {
		d, err := parseDecimal(fd.value)
		if err != nil {
			return usecase.NewOperation{}, fmt.Errorf("%s: %w", fd.name, err)
		}
		*fd.dst = d
	}
	return in, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// DeleteOperation removes an operation from the job.
func (h *Handler) DeleteOperation(c *gin.Context) {
	var form idForm
	if err := c.ShouldBind(&form); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.svc.DeleteOperation(c.Request.Context(), actorFrom(c), c.Param("jobId"), form.ID)
	if err != nil {
		abortWithError(c, err, &res)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ReorderOperations applies an {id: order} batch to the job's operations.
func (h *Handler) ReorderOperations(c *gin.Context) {
	updates, err := bindUpdates(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	batch := make([]model.OperationOrderUpdate, 0, len(updates))
	for _, u := range updates {
		batch = append(batch, model.OperationOrderUpdate{ID: u.id, Order: u.order})
	}
	res, err := h.svc.ReorderOperations(c.Request.Context(), actorFrom(c), c.Param("jobId"), batch)
	if err != nil {
		abortWithError(c, err, &res)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RecalculateJob reruns the dependency and requirement computations of the job.
func (h *Handler) RecalculateJob(c *gin.Context) {
	res, err := h.svc.RecalculateJob(c.Request.Context(), actorFrom(c), c.Param("jobId"))
	if err != nil {
		abortWithError(c, err, &res)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ExportSchedule writes the job's schedule to storage.
func (h *Handler) ExportSchedule(c *gin.Context) {
	object, err := h.svc.ExportSchedule(c.Request.Context(), actorFrom(c), c.Param("jobId"))
	if err != nil {
		abortWithError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "object": object})
}

// UpdateOperation changes one field of an operation.
func (h *Handler) UpdateOperation(c *gin.Context) {
	var form fieldForm
	if err := c.ShouldBind(&form); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	actor := actorFrom(c)
	current, err := h.svc.GetOperation(ctx, actor, c.Param("operationId"))
	if err != nil {
		abortWithError(c, err, nil)
		return
	}
	cmd, err := model.ParseOperationCommand(form.Field, form.Value, current)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	h.applyCommand(c, current.ID, cmd)
}

// MoveOnScheduleBoard moves an operation to a work center column and priority.
func (h *Handler) MoveOnScheduleBoard(c *gin.Context) {
	var form scheduleForm
	if err := c.ShouldBind(&form); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.applyCommand(c, form.ID, model.MoveOnScheduleBoard{WorkCenterID: form.ColumnID, Priority: form.Priority})
}

func (h *Handler) applyCommand(c *gin.Context, operationID string, cmd model.OperationCommand) {
	res, err := h.svc.UpdateOperation(c.Request.Context(), actorFrom(c), operationID, cmd)
	if err != nil {
		abortWithError(c, err, &res)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// InsertStep adds a step at the end of the operation.
func (h *Handler) InsertStep(c *gin.Context) {
	var form stepForm
	if err := c.ShouldBind(&form); err != nil {
		badRequest(c, err.Error())
		return
	}
	stepType := model.StepType(form.Type)
	if stepType == "" {
		stepType = model.StepTypeTask
	}
	res, err := h.svc.InsertStep(c.Request.Context(), actorFrom(c), c.Param("operationId"), usecase.NewStep{
		Name:        form.Name,
		Description: form.Description,
		Type:        stepType,
	})
	if err != nil {
		abortWithError(c, err, &res)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": res.ID})
}

// ReorderSteps applies an {id: order} batch to the operation's steps.
func (h *Handler) ReorderSteps(c *gin.Context) {
	updates, err := bindUpdates(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	batch := make([]model.StepOrderUpdate, 0, len(updates))
	for _, u := range updates {
		batch = append(batch, model.StepOrderUpdate{ID: u.id, SortOrder: u.order})
	}
	res, err := h.svc.ReorderSteps(c.Request.Context(), actorFrom(c), c.Param("operationId"), batch)
	if err != nil {
		abortWithError(c, err, &res)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// InsertParameter attaches a key/value parameter to the operation.
func (h *Handler) InsertParameter(c *gin.Context) {
	var form parameterForm
	if err := c.ShouldBind(&form); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.svc.InsertParameter(c.Request.Context(), actorFrom(c), c.Param("operationId"), form.Key, form.Value)
	if err != nil {
		abortWithError(c, err, &res)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": res.ID})
}

// DeleteParameter removes a parameter.
func (h *Handler) DeleteParameter(c *gin.Context) {
	if err := h.svc.DeleteParameter(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		abortWithError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// InsertTool attaches a tool to the operation.
func (h *Handler) InsertTool(c *gin.Context) {
	var form toolForm
	if err := c.ShouldBind(&form); err != nil {
		badRequest(c, err.Error())
		return
	}
	qty, err := parseDecimal(form.Quantity)
	if err != nil {
		badRequest(c, "quantity: "+err.Error())
		return
	}
	if form.Quantity == "" {
		qty = decimal.NewFromInt(1)
	}
	res, err := h.svc.InsertTool(c.Request.Context(), actorFrom(c), c.Param("operationId"), form.ToolID, qty)
	if err != nil {
		abortWithError(c, err, &res)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": res.ID})
}

// DeleteTool removes a tool.
func (h *Handler) DeleteTool(c *gin.Context) {
	if err := h.svc.DeleteTool(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		abortWithError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

type orderUpdate struct {
	id    string
	order float64
}

// bindUpdates reads the "updates" object, either a JSON body field or a form field
// holding JSON, and returns its entries sorted by order and then id. An order is a
// JSON number or a numeric string; any other value becomes NaN so the order store
// reports that entry on its own.
func bindUpdates(c *gin.Context) ([]orderUpdate, error) {
	var raw map[string]json.RawMessage
	if c.ContentType() == binding.MIMEJSON {
		var body struct {
			Updates map[string]json.RawMessage `json:"updates"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			return nil, fmt.Errorf("updates: %w", err)
		}
		raw = body.Updates
	} else {
		field := c.PostForm("updates")
		if field == "" {
			return nil, errors.New("updates is required")
		}
		if err := json.Unmarshal([]byte(field), &raw); err != nil {
			return nil, fmt.Errorf("updates: %w", err)
		}
	}
	if len(raw) == 0 {
		return nil, errors.New("updates is required")
	}
	out := make([]orderUpdate, 0, len(raw))
	for id, value := range raw {
		out = append(out, orderUpdate{id: id, order: parseOrderValue(value)})
	}
	sort.Slice(out, func(i, j int) bool {
		ni, nj := math.IsNaN(out[i].order), math.IsNaN(out[j].order)
		if ni != nj {
			return nj
		}
		if !ni && out[i].order != out[j].order {
			return out[i].order < out[j].order
		}
		return out[i].id < out[j].id
	})
	return out, nil
}

func parseOrderValue(value json.RawMessage) float64 {
	if string(value) == "null" {
		return math.NaN()
	}
	var n float64
	if err := json.Unmarshal(value, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return math.NaN()
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return n
}
