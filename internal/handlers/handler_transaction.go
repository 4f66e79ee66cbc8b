package handlers

import (
	"log/slog"
	"net/http"

	portssvc "github.com/SscSPs/ledger_engine/internal/core/ports/services"
	"github.com/SscSPs/ledger_engine/internal/dto"
	"github.com/SscSPs/ledger_engine/internal/middleware"
	"github.com/gin-gonic/gin"
)

// transactionHandler handles drafting, posting and reversing transactions.
type transactionHandler struct {
	ledgerService   portssvc.LedgerSvcFacade
	reversalService portssvc.ReversalSvc
}

func newTransactionHandler(ls portssvc.LedgerSvcFacade, rs portssvc.ReversalSvc) *transactionHandler {
	return &transactionHandler{ledgerService: ls, reversalService: rs}
}

// RegisterTransactionRoutes registers routes related to transactions.
func RegisterTransactionRoutes(rg *gin.RouterGroup, ledgerService portssvc.LedgerSvcFacade, reversalService portssvc.ReversalSvc) {
	h := newTransactionHandler(ledgerService, reversalService)

	txns := rg.Group("/transactions")
	{
		txns.POST("", h.openTransaction)
		txns.POST("/record", h.recordTransaction)
		txns.GET("/:transactionID", h.getTransaction)
		txns.PATCH("/:transactionID", h.updateTransaction)
		txns.GET("/:transactionID/entries", h.listEntries)
		txns.POST("/:transactionID/entries", h.addEntry)
		txns.POST("/:transactionID/post", h.postTransaction)
		txns.POST("/:transactionID/reverse", h.reverseTransaction)
	}
}

// openTransaction godoc
// @Summary Open a draft transaction
// @Tags transactions
// @Accept  json
// @Produce  json
// @Param   transaction body dto.OpenTransactionRequest true "Transaction envelope"
// @Success 201 {object} dto.TransactionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Security BearerAuth
// @Router /transactions [post]
func (h *transactionHandler) openTransaction(c *gin.Context) {
	var req dto.OpenTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	txn, err := h.ledgerService.OpenTransaction(c.Request.Context(), req, actor)
	if err != nil {
		respondError(c, err, "Failed to open transaction")
		return
	}
	c.JSON(http.StatusCreated, dto.ToTransactionResponse(txn))
}

// recordTransaction godoc
// @Summary Record a transaction
// @Description Opens, fills and posts a transaction atomically. Nothing is persisted unless the entries balance.
// @Tags transactions
// @Accept  json
// @Produce  json
// @Param   transaction body dto.RecordTransactionRequest true "Transaction with entries"
// @Success 201 {object} dto.TransactionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "Account not found"
// @Failure 422 {object} ErrorResponse "Unbalanced or inactive account"
// @Security BearerAuth
// @Router /transactions/record [post]
func (h *transactionHandler) recordTransaction(c *gin.Context) {
	var req dto.RecordTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	txn, err := h.ledgerService.RecordTransaction(c.Request.Context(), req, actor)
	if err != nil {
		respondError(c, err, "Failed to record transaction")
		return
	}
	middleware.GetLoggerFromCtx(c.Request.Context()).Info("Transaction recorded",
		slog.String("transaction_id", txn.TransactionID), slog.Int("entries", len(txn.Entries)))
	c.JSON(http.StatusCreated, dto.ToTransactionResponse(txn))
}

// getTransaction godoc
// @Summary Get a transaction with its entries
// @Tags transactions
// @Produce  json
// @Param   transactionID path string true "Transaction ID"
// @Success 200 {object} dto.TransactionResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /transactions/{transactionID} [get]
func (h *transactionHandler) getTransaction(c *gin.Context) {
	txn, err := h.ledgerService.GetTransaction(c.Request.Context(), c.Param("transactionID"))
	if err != nil {
		respondError(c, err, "Failed to retrieve transaction")
		return
	}
	c.JSON(http.StatusOK, dto.ToTransactionResponse(txn))
}

// updateTransaction godoc
// @Summary Update a draft transaction
// @Description Changing effectiveAt moves every entry of the draft with it.
// @Tags transactions
// @Accept  json
// @Produce  json
// @Param   transactionID path string true "Transaction ID"
// @Param   transaction body dto.UpdateTransactionRequest true "Fields to change"
// @Success 200 {object} dto.TransactionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Transaction is posted"
// @Security BearerAuth
// @Router /transactions/{transactionID} [patch]
func (h *transactionHandler) updateTransaction(c *gin.Context) {
	var req dto.UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	txn, err := h.ledgerService.UpdateTransaction(c.Request.Context(), c.Param("transactionID"), req, actor)
	if err != nil {
		respondError(c, err, "Failed to update transaction")
		return
	}
	c.JSON(http.StatusOK, dto.ToTransactionResponse(txn))
}

// listEntries godoc
// @Summary List the entries of a transaction
// @Tags transactions
// @Produce  json
// @Param   transactionID path string true "Transaction ID"
// @Success 200 {array} dto.EntryResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /transactions/{transactionID}/entries [get]
func (h *transactionHandler) listEntries(c *gin.Context) {
	entries, err := h.ledgerService.EntriesFor(c.Request.Context(), c.Param("transactionID"))
	if err != nil {
		respondError(c, err, "Failed to list entries")
		return
	}
	c.JSON(http.StatusOK, dto.ToEntryResponses(entries))
}

// addEntry godoc
// @Summary Add an entry to a draft transaction
// @Tags transactions
// @Accept  json
// @Produce  json
// @Param   transactionID path string true "Transaction ID"
// @Param   entry body dto.AddEntryRequest true "Entry"
// @Success 201 {object} dto.EntryResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Transaction is posted"
// @Failure 422 {object} ErrorResponse "Account is inactive"
// @Security BearerAuth
// @Router /transactions/{transactionID}/entries [post]
func (h *transactionHandler) addEntry(c *gin.Context) {
	var req dto.AddEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	entry, err := h.ledgerService.AddEntry(c.Request.Context(), c.Param("transactionID"), req, actor)
	if err != nil {
		respondError(c, err, "Failed to add entry")
		return
	}
	c.JSON(http.StatusCreated, dto.ToEntryResponse(entry))
}

// postTransaction godoc
// @Summary Post a transaction
// @Description Validates that debits equal credits per currency and freezes the transaction. Posting twice returns the posted transaction.
// @Tags transactions
// @Produce  json
// @Param   transactionID path string true "Transaction ID"
// @Success 200 {object} dto.TransactionResponse
// @Failure 400 {object} ErrorResponse "Transaction has no entries"
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse "Unbalanced"
// @Security BearerAuth
// @Router /transactions/{transactionID}/post [post]
func (h *transactionHandler) postTransaction(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	txn, err := h.ledgerService.Post(c.Request.Context(), c.Param("transactionID"), actor)
	if err != nil {
		respondError(c, err, "Failed to post transaction")
		return
	}
	c.JSON(http.StatusOK, dto.ToTransactionResponse(txn))
}

// reverseTransaction godoc
// @Summary Reverse every entry of a posted transaction
// @Tags transactions
// @Accept  json
// @Produce  json
// @Param   transactionID path string true "Transaction ID"
// @Param   reversal body dto.ReverseRequest true "Reason and optional effective time"
// @Success 201 {object} dto.TransactionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Not posted or already reversed"
// @Security BearerAuth
// @Router /transactions/{transactionID}/reverse [post]
func (h *transactionHandler) reverseTransaction(c *gin.Context) {
	var req dto.ReverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	txn, err := h.reversalService.ReverseTransaction(c.Request.Context(), c.Param("transactionID"), req.Reason, req.EffectiveAt, actor)
	if err != nil {
		respondError(c, err, "Failed to reverse transaction")
		return
	}
	c.JSON(http.StatusCreated, dto.ToTransactionResponse(txn))
}
