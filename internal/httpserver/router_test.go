package httpserver

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository/catalog"
	"storefront/internal/service/camera"
	"storefront/internal/service/modal"
	"storefront/internal/service/product"
	"storefront/internal/service/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) (*gin.Engine, *camera.SimulatedDevice) {
	t.Helper()
	repo, err := catalog.NewFixture()
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	device := camera.NewSimulatedDevice(camera.ModeReady)
	store := session.NewStore(repo, session.Deps{Device: device}, time.Minute)
	t.Cleanup(store.Close)
	products, err := product.New(repo)
	if err != nil {
		t.Fatalf("product service: %v", err)
	}

	router, err := buildRouter(zap.NewNop(), nil, Deps{Sessions: store, Products: products, AllowOrigins: []string{"*"}})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	gin.SetMode(gin.TestMode)
	return router, device
}

func do(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, session.Page) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var page session.Page
	if rec.Code < 300 && rec.Body.Len() > 0 || rec.Code == http.StatusUnprocessableEntity {
		if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
			t.Fatalf("decode page: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, page
}

func createSession(t *testing.T, router *gin.Engine) session.Page {
	t.Helper()
	rec, page := do(t, router, http.MethodPost, "/sessions", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}
	if page.SessionID == "" {
		t.Fatalf("expected session id")
	}
	return page
}

func TestHealthAndReady(t *testing.T) {
	router, _ := newTestRouter(t)
	rec, _ := do(t, router, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	rec, _ = do(t, router, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "embedded") {
		t.Fatalf("unexpected ready response %d %s", rec.Code, rec.Body.String())
	}
}

func TestBuildRouterRequiresStore(t *testing.T) {
	if _, err := buildRouter(zap.NewNop(), nil, Deps{}); err == nil {
		t.Fatalf("expected error without session store")
	}
}

func TestUnknownSession(t *testing.T) {
	router, _ := newTestRouter(t)
	rec, _ := do(t, router, http.MethodGet, "/sessions/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestCreateSessionRendersFixture(t *testing.T) {
	router, _ := newTestRouter(t)
	page := createSession(t, router)
	if len(page.Cart.Shops) != 2 {
		t.Fatalf("expected 2 shops, got %d", len(page.Cart.Shops))
	}
	if len(page.Cards) == 0 {
		t.Fatalf("expected product cards")
	}
	if page.Modal.Open != "" || page.Modal.ScrollLock {
		t.Fatalf("expected no modal, got %+v", page.Modal)
	}
}

func TestCartRoutes(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createSession(t, router).SessionID
	base := "/sessions/" + id

	_, page := do(t, router, http.MethodPost, base+"/cart/toggle-all", `{"checked":false}`)
	if page.Cart.Totals.Count != 0 || page.Cart.Totals.SubtotalText != "¥0.00" {
		t.Fatalf("unexpected totals %+v", page.Cart.Totals)
	}
	if page.Cart.AllChecked {
		t.Fatalf("expected global checkbox cleared")
	}

	rec, page := do(t, router, http.MethodPost, base+"/checkout", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rec.Code)
	}
	if page.Alert != "请选择要结算的商品" {
		t.Fatalf("unexpected alert %q", page.Alert)
	}

	shopID := page.Cart.Shops[0].ID
	itemID := page.Cart.Shops[0].Items[0].ID
	_, page = do(t, router, http.MethodPost, base+"/cart/shops/"+shopID+"/toggle", `{"checked":true}`)
	if !page.Cart.Shops[0].Checked {
		t.Fatalf("expected shop checked")
	}
	before := page.Cart.Totals.Count
	_, page = do(t, router, http.MethodPost, base+"/cart/items/"+itemID+"/increment", "")
	if page.Cart.Totals.Count != before+1 {
		t.Fatalf("expected count %d, got %d", before+1, page.Cart.Totals.Count)
	}
	_, page = do(t, router, http.MethodPost, base+"/cart/items/"+itemID+"/toggle", "")
	if page.Cart.Shops[0].Checked {
		t.Fatalf("expected shop unchecked after item toggle")
	}

	rec, _ = do(t, router, http.MethodPost, base+"/cart", `{"actions":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	rec, page = do(t, router, http.MethodPost, base+"/cart", `{"actions":[{"action":"toggleAll","checked":true}]}`)
	if rec.Code != http.StatusOK || !page.Cart.AllChecked {
		t.Fatalf("expected all checked, got %d %+v", rec.Code, page.Cart)
	}

	_, page = do(t, router, http.MethodPost, base+"/checkout", "")
	if page.Alert != "前往结算页面" {
		t.Fatalf("unexpected alert %q", page.Alert)
	}
	_, page = do(t, router, http.MethodPost, base+"/alert/dismiss", "")
	if page.Alert != "" {
		t.Fatalf("expected alert dismissed, got %q", page.Alert)
	}
}

func TestCameraRoutes(t *testing.T) {
	router, device := newTestRouter(t)
	base := "/sessions/" + createSession(t, router).SessionID

	rec, _ := do(t, router, http.MethodPost, base+"/camera/capture", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}

	_, page := do(t, router, http.MethodPost, base+"/camera/open", "")
	if page.Modal.Open != modal.Camera || !page.Camera.PreviewVisible {
		t.Fatalf("expected camera preview, got %+v %+v", page.Modal, page.Camera)
	}
	if device.LiveStreams() != 1 {
		t.Fatalf("expected 1 live stream, got %d", device.LiveStreams())
	}

	_, page = do(t, router, http.MethodPost, base+"/camera/capture", "")
	if !page.Camera.ImageVisible || page.Camera.CaptureButton {
		t.Fatalf("unexpected camera view %+v", page.Camera)
	}

	_, page = do(t, router, http.MethodPost, base+"/camera/search", "")
	if page.Modal.Open != modal.Search || page.Search == nil || page.Search.Query != "图片搜索" {
		t.Fatalf("expected image search results, got %+v", page.Search)
	}

	_, _ = do(t, router, http.MethodPost, base+"/camera/open", "")
	rec, page = do(t, router, http.MethodPost, base+"/modals/"+modal.Camera+"/backdrop", `{"target":"`+modal.Camera+`"}`)
	if rec.Code != http.StatusOK || page.Modal.Open != "" || page.Modal.ScrollLock {
		t.Fatalf("expected modal closed, got %d %+v", rec.Code, page.Modal)
	}
	if device.LiveStreams() != 0 {
		t.Fatalf("expected stream released, got %d live", device.LiveStreams())
	}
}

func TestGenericOpenStartsCameraPreview(t *testing.T) {
	router, device := newTestRouter(t)
	base := "/sessions/" + createSession(t, router).SessionID

	rec, page := do(t, router, http.MethodPost, base+"/modals/"+modal.Camera+"/open", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if page.Modal.Open != modal.Camera || page.Camera.State != camera.Previewing || !page.Camera.PreviewVisible {
		t.Fatalf("expected camera preview, got %+v %+v", page.Modal, page.Camera)
	}
	if device.LiveStreams() != 1 {
		t.Fatalf("expected 1 live stream, got %d", device.LiveStreams())
	}

	_, page = do(t, router, http.MethodPost, base+"/modals/"+modal.Camera+"/close", "")
	if page.Modal.Open != "" || device.LiveStreams() != 0 {
		t.Fatalf("expected camera released, got %+v with %d live", page.Modal, device.LiveStreams())
	}
}

func TestUploadRoute(t *testing.T) {
	router, _ := newTestRouter(t)
	base := "/sessions/" + createSession(t, router).SessionID

	var img bytes.Buffer
	if err := png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "photo.png")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = fw.Write(img.Bytes())
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, base+"/camera/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var page session.Page
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(page.Camera.ImageDataURL, "data:image/png;base64,") {
		t.Fatalf("unexpected data url %q", page.Camera.ImageDataURL)
	}

	req = httptest.NewRequest(http.MethodPost, base+"/camera/upload", strings.NewReader("not an image"))
	req.Header.Set("Content-Type", "application/octet-stream")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rec.Code)
	}
}

func TestSearchAndDetailRoutes(t *testing.T) {
	router, _ := newTestRouter(t)
	created := createSession(t, router)
	base := "/sessions/" + created.SessionID

	rec, page := do(t, router, http.MethodPost, base+"/search", `{"keyword":"   "}`)
	if rec.Code != http.StatusUnprocessableEntity || page.Alert != "请输入搜索关键词" {
		t.Fatalf("expected keyword rejection, got %d %q", rec.Code, page.Alert)
	}

	_, page = do(t, router, http.MethodPost, base+"/search", `{"keyword":"手机"}`)
	if page.Search == nil || len(page.Search.Items) != 4 {
		t.Fatalf("expected 4 results, got %+v", page.Search)
	}

	rec, _ = do(t, router, http.MethodPost, base+"/search/results/x/select", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	_, page = do(t, router, http.MethodPost, base+"/search/results/0/select", "")
	if page.Modal.Open != modal.ProductDetail || page.Detail == nil || page.Detail.OriginalPrice != "¥256" {
		t.Fatalf("unexpected detail %+v", page.Detail)
	}

	_, page = do(t, router, http.MethodPost, base+"/detail/add-to-cart", "")
	if page.Alert != "已加入购物车" || page.Modal.Open != "" {
		t.Fatalf("unexpected page after add to cart: %q %+v", page.Alert, page.Modal)
	}

	_, page = do(t, router, http.MethodPost, base+"/cards/"+created.Cards[0].ID+"/show", "")
	if page.Detail == nil || page.Detail.Title != created.Cards[0].Summary.Title {
		t.Fatalf("unexpected card detail %+v", page.Detail)
	}
	_, page = do(t, router, http.MethodPost, base+"/detail/buy-now", "")
	if page.Alert != "前往结算页面" {
		t.Fatalf("unexpected alert %q", page.Alert)
	}
}

func TestHistoryRoutes(t *testing.T) {
	router, _ := newTestRouter(t)
	created := createSession(t, router)
	base := "/sessions/" + created.SessionID

	_, page := do(t, router, http.MethodPost, base+"/cards/"+created.Cards[1].ID+"/show", "")
	if len(page.History) != 1 || page.History[0].Key != created.Cards[1].ID {
		t.Fatalf("expected one history entry, got %+v", page.History)
	}

	rec, page := do(t, router, http.MethodDelete, base+"/history", "")
	if rec.Code != http.StatusOK || len(page.History) != 0 {
		t.Fatalf("expected cleared history, got %d %+v", rec.Code, page.History)
	}
}

func TestProductRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/products")
	var products []domain.Product
	if err := json.Unmarshal(rec.Body.Bytes(), &products); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	if rec.Code != http.StatusOK || len(products) != 5 {
		t.Fatalf("expected 5 products, got %d %d", rec.Code, len(products))
	}

	rec = get("/products/search?keyword=" + url.QueryEscape("耳机"))
	products = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &products); err != nil {
		t.Fatalf("decode search: %v", err)
	}
	if len(products) != 1 || products[0].ID != "bt-earbuds" {
		t.Fatalf("unexpected search result %+v", products)
	}

	rec = get("/products/summer-dress")
	var p domain.Product
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	if rec.Code != http.StatusOK || p.Title != "时尚女装夏季新款连衣裙" {
		t.Fatalf("unexpected product %d %+v", rec.Code, p)
	}

	rec = get("/products/missing")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "商品不存在") {
		t.Fatalf("expected 404 with message, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestLocationRoutes(t *testing.T) {
	router, _ := newTestRouter(t)
	base := "/sessions/" + createSession(t, router).SessionID

	_, page := do(t, router, http.MethodPost, base+"/location/locate", `{"error":"PERMISSION_DENIED"}`)
	if page.Modal.Open != modal.Location || page.Location.Current != "用户拒绝定位请求" {
		t.Fatalf("unexpected location %+v", page.Location)
	}
	_, page = do(t, router, http.MethodPost, base+"/location/locate", `{"error":"unsupported"}`)
	if page.Location.Current != "浏览器不支持定位" {
		t.Fatalf("unexpected location %+v", page.Location)
	}
	_, page = do(t, router, http.MethodPost, base+"/location/locate", `{"latitude":39.9042,"longitude":116.4074}`)
	if !strings.HasPrefix(page.Location.Current, "当前位置: ") || !strings.HasSuffix(page.Location.Current, "(39.9042, 116.4074)") {
		t.Fatalf("unexpected location %+v", page.Location)
	}

	rec, _ := do(t, router, http.MethodPost, base+"/location/pick", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	_, page = do(t, router, http.MethodPost, base+"/location/pick", `{"city":"`+page.Location.Cities[0]+`"}`)
	if page.Location.Label != page.Location.Cities[0] || page.Modal.Open != "" {
		t.Fatalf("unexpected location after pick %+v %+v", page.Location, page.Modal)
	}
}

func TestDeleteSession(t *testing.T) {
	router, _ := newTestRouter(t)
	base := "/sessions/" + createSession(t, router).SessionID
	rec, _ := do(t, router, http.MethodDelete, base, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	rec, _ = do(t, router, http.MethodGet, base, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/sessions", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
}
