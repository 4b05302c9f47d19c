package handler

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lostfound-api/internal/middleware"
	"github.com/noah-isme/lostfound-api/internal/models"
	"github.com/noah-isme/lostfound-api/internal/service"
	"github.com/noah-isme/lostfound-api/pkg/config"
)

type testEnvelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *struct{ Code string } `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
}

var (
	studentClaims  = &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent, Email: "student@campus.edu"}
	securityClaims = &models.JWTClaims{UserID: "sec-1", Role: models.RoleSecurity, Email: "guard@campus.edu"}
	adminClaims    = &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin, Email: "dean@campus.edu"}
)

func testPolicy() *service.RolePolicy {
	return service.NewRolePolicy(config.RoleConfig{LegacyAdminEmail: "admin@gmail.com", LegacyEmailFallback: true})
}

// newTestContext builds a gin context for method/target, attaching claims and a JSON body when given.
func newTestContext(method, target string, body interface{}, claims *models.JWTClaims, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	var buf bytes.Buffer
	if body != nil {
		switch v := body.(type) {
		case string:
			buf.WriteString(v)
		default:
			_ = json.NewEncoder(&buf).Encode(v)
		}
	}
	c.Request = httptest.NewRequest(method, target, &buf)
	if body != nil {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	c.Params = params
	return c, rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func idParam(id string) gin.Param {
	return gin.Param{Key: "id", Value: id}
}
