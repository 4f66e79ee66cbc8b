package handlers

import (
	"net/http"

	portssvc "github.com/SscSPs/ledger_engine/internal/core/ports/services"
	"github.com/SscSPs/ledger_engine/internal/dto"
	"github.com/gin-gonic/gin"
)

type entryHandler struct {
	ledgerService   portssvc.LedgerSvcFacade
	reversalService portssvc.ReversalSvc
}

// RegisterEntryRoutes registers routes addressing single entries.
func RegisterEntryRoutes(rg *gin.RouterGroup, ledgerService portssvc.LedgerSvcFacade, reversalService portssvc.ReversalSvc) {
	h := &entryHandler{ledgerService: ledgerService, reversalService: reversalService}

	entries := rg.Group("/entries")
	{
		entries.PATCH("/:entryID", h.updateEntry)
		entries.POST("/:entryID/reverse", h.reverseEntry)
	}
}

// updateEntry godoc
// @Summary Update a draft entry
// @Tags entries
// @Accept  json
// @Produce  json
// @Param   entryID path string true "Entry ID"
// @Param   entry body dto.UpdateEntryRequest true "Fields to change"
// @Success 200 {object} dto.EntryResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Entry belongs to a posted transaction"
// @Security BearerAuth
// @Router /entries/{entryID} [patch]
func (h *entryHandler) updateEntry(c *gin.Context) {
	var req dto.UpdateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	entry, err := h.ledgerService.UpdateEntry(c.Request.Context(), c.Param("entryID"), req, actor)
	if err != nil {
		respondError(c, err, "Failed to update entry")
		return
	}
	c.JSON(http.StatusOK, dto.ToEntryResponse(entry))
}

// reverseEntry godoc
// @Summary Reverse a posted entry
// @Description Posts a new transaction holding one entry with the same account and amount in the opposite direction.
// @Tags entries
// @Accept  json
// @Produce  json
// @Param   entryID path string true "Entry ID"
// @Param   reversal body dto.ReverseRequest true "Reason and optional effective time"
// @Success 201 {object} dto.TransactionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Not posted or already reversed"
// @Security BearerAuth
// @Router /entries/{entryID}/reverse [post]
func (h *entryHandler) reverseEntry(c *gin.Context) {
	var req dto.ReverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	txn, err := h.reversalService.Reverse(c.Request.Context(), c.Param("entryID"), req.Reason, req.EffectiveAt, actor)
	if err != nil {
		respondError(c, err, "Failed to reverse entry")
		return
	}
	c.JSON(http.StatusCreated, dto.ToTransactionResponse(txn))
}
