package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"card-custody-service/internal/middleware"
	"card-custody-service/internal/models"
	"card-custody-service/internal/repository"
	"card-custody-service/internal/vault"
)

// AdminHandler exposes actor, institution, account, target and grant
// administration. These are thin CRUD surfaces; the interesting logic lives
// in the authorization chain that consumes what is created here.
type AdminHandler struct {
	actors repository.ActorRepositoryInterface
	org    repository.OrgRepositoryInterface
	grants repository.GrantRepositoryInterface
	vault  *vault.Vault
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	actors repository.ActorRepositoryInterface,
	org repository.OrgRepositoryInterface,
	grants repository.GrantRepositoryInterface,
	cardVault *vault.Vault,
) *AdminHandler {
	return &AdminHandler{actors: actors, org: org, grants: grants, vault: cardVault}
}

// CreateActor registers an actor with a bcrypt-hashed reveal PIN
// @Summary Create an actor
// @Tags admin
// @Accept json
// @Produce json
// @Param request body models.CreateActorRequest true "Actor details"
// @Success 201 {object} models.SuccessResponse
// @Router /api/v1/actors [post]
func (h *AdminHandler) CreateActor(c *gin.Context) {
	var req models.CreateActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	pinHash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to hash PIN")
		return
	}

	actor := &models.Actor{
		Email:        req.Email,
		Name:         req.Name,
		Role:         req.Role,
		Status:       models.ActorStatusActive,
		SupervisorID: req.SupervisorID,
		PINHash:      string(pinHash),
	}
	if creator, ok := middleware.ActorFromContext(c); ok {
		id := creator.ID.String()
		actor.CreatedBy = &id
	}

	if err := h.actors.CreateActor(c.Request.Context(), actor); err != nil {
		respondError(c, http.StatusInternalServerError, "CREATION_FAILED", "Failed to create actor")
		return
	}

	respondCreated(c, actor, "Actor created successfully")
}

// GetActor retrieves an actor by ID
// @Summary Get an actor
// @Tags admin
// @Produce json
// @Param id path string true "Actor ID"
// @Success 200 {object} models.SuccessResponse
// @Router /api/v1/actors/{id} [get]
func (h *AdminHandler) GetActor(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid actor ID")
		return
	}

	actor, err := h.actors.GetActorByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Actor not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch actor")
		return
	}

	respondOK(c, actor)
}

// UpdateActorStatus changes an actor's status. Deactivation takes effect on
// the next authorization check; open sessions are not tracked.
// @Summary Update actor status
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Actor ID"
// @Param request body models.UpdateActorStatusRequest true "New status"
// @Success 200 {object} models.SuccessResponse
// @Router /api/v1/actors/{id}/status [patch]
func (h *AdminHandler) UpdateActorStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid actor ID")
		return
	}

	var req models.UpdateActorStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	if err := h.actors.UpdateActorStatus(c.Request.Context(), id, req.Status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Actor not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update actor")
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Message: stringPtr("Actor status updated"),
	})
}

// ListWorkers lists the workers reporting to a supervisor
// @Summary List a supervisor's workers
// @Tags admin
// @Produce json
// @Param id path string true "Supervisor ID"
// @Success 200 {object} models.SuccessResponse
// @Router /api/v1/actors/{id}/workers [get]
func (h *AdminHandler) ListWorkers(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid actor ID")
		return
	}

	workers, err := h.actors.ListWorkersOfSupervisor(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list workers")
		return
	}

	respondOK(c, workers)
}

// CreateInstitution registers an issuing bank
// @Summary Create an institution
// @Tags admin
// @Accept json
// @Produce json
// @Param request body models.CreateInstitutionRequest true "Institution details"
// @Success 201 {object} models.SuccessResponse
// @Router /api/v1/institutions [post]
func (h *AdminHandler) CreateInstitution(c *gin.Context) {
	var req models.CreateInstitutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	institution := &models.Institution{
		Name:     req.Name,
		Country:  req.Country,
		IsActive: true,
	}
	if err := h.org.CreateInstitution(c.Request.Context(), institution); err != nil {
		respondError(c, http.StatusInternalServerError, "CREATION_FAILED", "Failed to create institution")
		return
	}

	respondCreated(c, institution, "Institution created successfully")
}

// CreateAccount registers a bank account, encrypting its credential
// @Summary Create an account
// @Tags admin
// @Accept json
// @Produce json
// @Param request body models.CreateAccountRequest true "Account details"
// @Success 201 {object} models.SuccessResponse
// @Router /api/v1/accounts [post]
func (h *AdminHandler) CreateAccount(c *gin.Context) {
	var req models.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	account := &models.Account{
		InstitutionID: req.InstitutionID,
		Balance:       req.Balance,
		CurrencyCode:  "USD",
		LoginURL:      req.LoginURL,
	}
	if req.CurrencyCode != "" {
		account.CurrencyCode = req.CurrencyCode
	}
	if req.Credential != nil && *req.Credential != "" {
		enc, err := h.vault.Encrypt(*req.Credential)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "ENCRYPTION_FAILED", "Failed to encrypt credential")
			return
		}
		account.CredentialEnc = enc
	}

	if err := h.org.CreateAccount(c.Request.Context(), account); err != nil {
		respondError(c, http.StatusInternalServerError, "CREATION_FAILED", "Failed to create account")
		return
	}

	respondCreated(c, account, "Account created successfully")
}

// CreateTarget registers a target site
// @Summary Create a target
// @Tags admin
// @Accept json
// @Produce json
// @Param request body models.CreateTargetRequest true "Target details"
// @Success 201 {object} models.SuccessResponse
// @Router /api/v1/targets [post]
func (h *AdminHandler) CreateTarget(c *gin.Context) {
	var req models.CreateTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	target := &models.Target{
		Name:     req.Name,
		URL:      req.URL,
		IsActive: true,
	}
	if err := h.org.CreateTarget(c.Request.Context(), target); err != nil {
		respondError(c, http.StatusInternalServerError, "CREATION_FAILED", "Failed to create target")
		return
	}

	respondCreated(c, target, "Target created successfully")
}

// CreateGrant authorizes a supervisor for an institution or target
// @Summary Create a delegation grant
// @Tags admin
// @Accept json
// @Produce json
// @Param request body models.CreateGrantRequest true "Grant details"
// @Success 201 {object} models.SuccessResponse
// @Router /api/v1/grants [post]
func (h *AdminHandler) CreateGrant(c *gin.Context) {
	var req models.CreateGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	switch req.Type {
	case models.GrantTypeInstitution:
		if req.InstitutionID == nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "institutionId is required for institution grants")
			return
		}
	case models.GrantTypeTarget:
		if req.TargetID == nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "targetId is required for target grants")
			return
		}
	default:
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "unknown grant type")
		return
	}

	grant := &models.DelegationGrant{
		Type:          req.Type,
		SupervisorID:  req.SupervisorID,
		InstitutionID: req.InstitutionID,
		TargetID:      req.TargetID,
		IsActive:      true,
	}
	if creator, ok := middleware.ActorFromContext(c); ok {
		grant.CreatedBy = &creator.ID
	}

	if err := h.grants.CreateGrant(c.Request.Context(), grant); err != nil {
		respondError(c, http.StatusInternalServerError, "CREATION_FAILED", "Failed to create grant")
		return
	}

	respondCreated(c, grant, "Grant created successfully")
}

// RevokeGrant deactivates a grant; revocation applies to the next
// authorization check, in-flight engagements are unaffected
// @Summary Revoke a delegation grant
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Grant ID"
// @Param request body models.RevokeGrantRequest true "Revocation reason"
// @Success 200 {object} models.SuccessResponse
// @Router /api/v1/grants/{id}/revoke [post]
func (h *AdminHandler) RevokeGrant(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid grant ID")
		return
	}

	var req models.RevokeGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	if err := h.grants.RevokeGrant(c.Request.Context(), id, actor.ID, req.Reason); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Grant not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to revoke grant")
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Message: stringPtr("Grant revoked"),
	})
}

// ListGrants lists the grants held by a supervisor
// @Summary List grants for a supervisor
// @Tags admin
// @Produce json
// @Param supervisorId query string true "Supervisor ID"
// @Success 200 {object} models.SuccessResponse
// @Router /api/v1/grants [get]
func (h *AdminHandler) ListGrants(c *gin.Context) {
	supervisorID, err := uuid.Parse(c.Query("supervisorId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "supervisorId query parameter is required")
		return
	}

	grants, err := h.grants.ListGrantsForSupervisor(c.Request.Context(), supervisorID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list grants")
		return
	}

	respondOK(c, grants)
}
