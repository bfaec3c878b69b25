package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	appctx "geniuserp/internal/core/context"
)

func TestActor_PropagatesHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var gotID, gotEmail string
	router := gin.New()
	router.Use(Actor())
	router.GET("/whoami", func(c *gin.Context) {
		gotID = appctx.GetActorID(c.Request.Context())
		if a := appctx.GetActor(c.Request.Context()); a != nil {
			gotEmail = a.Email
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(HeaderActorID, "user-42")
	req.Header.Set(HeaderActorEmail, "contabil@example.ro")
	router.ServeHTTP(httptest.NewRecorder(), req)

	if gotID != "user-42" {
		t.Errorf("expected actor id user-42, got %q", gotID)
	}
	if gotEmail != "contabil@example.ro" {
		t.Errorf("expected actor email to propagate, got %q", gotEmail)
	}
}

func TestActor_DefaultsToSystem(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var got string
	router := gin.New()
	router.Use(Actor())
	router.GET("/x", func(c *gin.Context) {
		got = appctx.GetActorID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	if got != "system" {
		t.Errorf("expected system fallback, got %q", got)
	}
}
