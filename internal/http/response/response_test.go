package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/adstudio-backend/internal/platform/apierr"
)

func TestRespondAPIError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		err    error
		status int
		code   string
		msg    string
	}{
		{"typed", apierr.NotFound("content_not_found", errors.New("content not found")), http.StatusNotFound, "content_not_found", "content not found"},
		{"wrapped", fmt.Errorf("load: %w", apierr.BadRequest("invalid_id", errors.New("bad id"))), http.StatusBadRequest, "invalid_id", "bad id"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "generation_failed", "boom"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			RespondAPIError(c, tc.err, "generation_failed")

			if rec.Code != tc.status {
				t.Fatalf("status: want=%d got=%d", tc.status, rec.Code)
			}
			var env ErrorEnvelope
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env.Error.Code != tc.code || env.Error.Message != tc.msg {
				t.Fatalf("envelope: want=%s/%s got=%+v", tc.code, tc.msg, env.Error)
			}
		})
	}
}
