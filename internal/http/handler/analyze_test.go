package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"fractionalhub.app/concierge/internal/analyzer"
	"fractionalhub.app/concierge/internal/http/handler"
	"fractionalhub.app/concierge/internal/model"
)

var _ = Describe("AnalyzeHandler", func() {
	var (
		router      *gin.Engine
		transcripts *mockTranscriptAnalyzer
		upstream    *httptest.Server
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		transcripts = &mockTranscriptAnalyzer{}
		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"success","data":{"type":"job_results","jobs":[]}}`))
		}))

		router = gin.New()
		h := handler.NewAnalyzeHandler(transcripts, analyzer.NewPythonProxy(upstream.URL))
		router.POST("/analyze", h.Analyze)
		router.POST("/analyze/python", h.AnalyzePython)
	})

	AfterEach(func() {
		upstream.Close()
	})

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("returns success with encoded data on a match", func() {
		transcripts.analyzeFn = func(_ context.Context, transcript, userID string) (*model.ExtractionResult, error) {
			Expect(transcript).To(Equal("find me CFO roles in London"))
			Expect(userID).To(Equal("user-1"))
			return &model.ExtractionResult{
				Type: model.ResultTypeJobs,
				Jobs: []model.Job{{ID: 1, Title: "Fractional CFO"}},
			}, nil
		}

		w := post("/analyze", `{"transcript":"find me CFO roles in London","userId":"user-1"}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp struct {
			Status string          `json:"status"`
			Data   json.RawMessage `json:"data"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Status).To(Equal("success"))

		res, ok := model.ParseExtraction(resp.Data)
		Expect(ok).To(BeTrue())
		Expect(res.Jobs).To(HaveLen(1))
	})

	It("returns success without data when there is nothing actionable", func() {
		w := post("/analyze", `{"transcript":"nice weather","userId":"user-1"}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["status"]).To(Equal("success"))
		Expect(resp).NotTo(HaveKey("data"))
	})

	It("reports analyzer failures as an error status, not an HTTP error", func() {
		transcripts.analyzeFn = func(context.Context, string, string) (*model.ExtractionResult, error) {
			return nil, errors.New("model unavailable")
		}

		w := post("/analyze", `{"transcript":"find me CFO roles","userId":"user-1"}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["status"]).To(Equal("error"))
	})

	It("returns 400 when the transcript is missing", func() {
		w := post("/analyze", `{"userId":"user-1"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("proxies the python analyzer verbatim", func() {
		w := post("/analyze/python", `{"transcript":"anything","userId":"user-1"}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(MatchJSON(`{"status":"success","data":{"type":"job_results","jobs":[]}}`))
	})

	It("returns 502 when the python analyzer is unreachable", func() {
		upstream.Close()

		w := post("/analyze/python", `{"transcript":"anything"}`)
		Expect(w.Code).To(Equal(http.StatusBadGateway))
	})
})
