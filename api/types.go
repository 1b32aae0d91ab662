package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/wpbryant/WordOps-Dashboard/interfaces"
	"github.com/wpbryant/WordOps-Dashboard/validation"
)

// MaxBodySize caps request bodies (1MB).
const MaxBodySize = 1024 * 1024

var validate *validator.Validate

func init() {
	validate = validator.New()
	for tag, fn := range map[string]func(string) bool{
		"domain":          validation.ValidateDomain,
		"runtime_version": validation.ValidateRuntimeVersion,
		"proxy_target":    validation.ValidateProxyTarget,
	} {
		if err := registerStringValidation(tag, fn); err != nil {
			panic(err)
		}
	}
}

func registerStringValidation(tag string, fn func(string) bool) error {
	return validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return fn(fl.Field().String())
	})
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HealthResponse answers /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// LoginRequest is accepted as JSON or as an OAuth2 password form.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserResponse answers /auth/me.
type UserResponse struct {
	Username string `json:"username"`
}

// CreateSiteRequest is the POST /sites body. Type defaults to wordpress and
// SSL to true.
type CreateSiteRequest struct {
	Domain      string               `json:"domain" validate:"required,domain"`
	Type        interfaces.SiteType  `json:"type" validate:"omitempty,oneof=wordpress php html mysql proxy alias"`
	SSL         *bool                `json:"ssl"`
	Cache       interfaces.CacheType `json:"cache" validate:"omitempty,oneof=none wpfc wpsc wpredis redis"`
	PHPVersion  string               `json:"php_version" validate:"omitempty,runtime_version"`
	ProxyTarget string               `json:"proxy_target" validate:"required_if=Type proxy,omitempty,proxy_target"`
	AliasTarget string               `json:"alias_target" validate:"required_if=Type alias,omitempty,domain"`
}

// Validate checks the body and converts it to the domain request.
func (r *CreateSiteRequest) Validate() (interfaces.CreateSiteRequest, error) {
	if err := validateStruct(r); err != nil {
		return interfaces.CreateSiteRequest{}, err
	}
	req := interfaces.CreateSiteRequest{
		Domain:      r.Domain,
		Type:        r.Type,
		TLS:         true,
		Cache:       r.Cache,
		PHPVersion:  r.PHPVersion,
		ProxyTarget: r.ProxyTarget,
		AliasTarget: r.AliasTarget,
	}
	if req.Type == "" {
		req.Type = interfaces.SiteTypeWordPress
	}
	if r.SSL != nil {
		req.TLS = *r.SSL
	}
	return req, nil
}

// UpdateSiteRequest is the PUT /sites/{domain} body. Omitted fields are unchanged.
type UpdateSiteRequest struct {
	SSL        *bool                 `json:"ssl"`
	Cache      *interfaces.CacheType `json:"cache" validate:"omitempty,oneof=none wpfc wpsc wpredis redis"`
	PHPVersion *string               `json:"php_version" validate:"omitempty,runtime_version"`
}

func (r *UpdateSiteRequest) Validate() (interfaces.UpdateSiteRequest, error) {
	if err := validateStruct(r); err != nil {
		return interfaces.UpdateSiteRequest{}, err
	}
	if r.SSL == nil && r.Cache == nil && r.PHPVersion == nil {
		return interfaces.UpdateSiteRequest{}, &interfaces.ValidationError{Field: "body", Reason: "no fields to update"}
	}
	return interfaces.UpdateSiteRequest{TLS: r.SSL, Cache: r.Cache, PHPVersion: r.PHPVersion}, nil
}

// SiteHealthResponse answers /sites/health-check.
type SiteHealthResponse struct {
	WordOpsAvailable bool   `json:"wordops_available"`
	Status           string `json:"status"`
	Version          string `json:"version,omitempty"`
}

// NginxConfigResponse carries the raw vhost file.
type NginxConfigResponse struct {
	Config string `json:"config"`
}

// ActionResponse acknowledges a state change.
type ActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ServiceResponse is one entry of /server/services.
type ServiceResponse struct {
	interfaces.ServiceStatus
	Active bool `json:"active"`
}

// NewServiceResponse wraps a status with its derived active flag.
func NewServiceResponse(s interfaces.ServiceStatus) ServiceResponse {
	return ServiceResponse{ServiceStatus: s, Active: s.Active()}
}

// LogsResponse answers /server/logs/{type}.
type LogsResponse struct {
	LogType string   `json:"log_type"`
	Lines   []string `json:"lines"`
	Count   int      `json:"count"`
}

// validateStruct runs the tag rules and reports the first failure as a
// *interfaces.ValidationError.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &interfaces.ValidationError{Field: "body", Reason: err.Error()}
	}
	fe := verrs[0]
	return &interfaces.ValidationError{
		Field:  jsonName(fe.Field()),
		Value:  fmt.Sprint(fe.Value()),
		Reason: describeTag(fe),
	}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "domain":
		return "is not a valid domain name"
	case "runtime_version":
		return "must look like 8.3"
	case "proxy_target":
		return "must be host:port"
	}
	return "failed " + fe.Tag()
}

// jsonName maps a Go field name to its snake_case JSON key.
func jsonName(field string) string {
	switch field {
	case "SSL":
		return "ssl"
	case "PHPVersion":
		return "php_version"
	}
	var b strings.Builder
	for i, r := range field {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}
