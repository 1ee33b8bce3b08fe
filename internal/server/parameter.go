package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	parameterdomain "github.com/smallbiznis/paramstore/internal/parameter/domain"
	"github.com/smallbiznis/paramstore/pkg/db/pagination"
)

func (s *Server) CreateParameter(c *gin.Context) {
	var req parameterdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.parameterSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListParameters(c *gin.Context) {
	var query struct {
		pagination.Pagination
		KeyPrefix string `form:"key_prefix"`
		IsActive  string `form:"is_active"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	isActive, err := queryBool("is_active", query.IsActive)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.parameterSvc.List(c.Request.Context(), parameterdomain.ListRequest{
		Pagination: query.Pagination,
		KeyPrefix:  strings.TrimSpace(query.KeyPrefix),
		IsActive:   isActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetParameterByID(c *gin.Context) {
	resp, err := s.parameterSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateParameter(c *gin.Context) {
	var req parameterdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))

	resp, err := s.parameterSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteParameter(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := s.parameterSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) SetCountryOverride(c *gin.Context) {
	var req parameterdomain.SetOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))
	req.Country = strings.TrimSpace(c.Param("code"))

	resp, err := s.parameterSvc.SetCountryOverride(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// DeleteCountryOverride accepts the version guard either as a JSON body or as
// lastKnownVersion/forceUpdate query parameters.
func (s *Server) DeleteCountryOverride(c *gin.Context) {
	var req parameterdomain.DeleteOverrideRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := mergeVersionGuardQuery(c, &req.VersionGuard); err != nil {
		AbortWithError(c, err)
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))
	req.Country = strings.TrimSpace(c.Param("code"))

	resp, err := s.parameterSvc.DeleteCountryOverride(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// bindOptionalJSON binds the body when one is present. Chunked bodies report
// ContentLength -1, so only an empty read counts as absent.
func bindOptionalJSON(c *gin.Context, obj any) error {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
