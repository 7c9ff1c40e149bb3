package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mun_dashboard/internal/models"
	"mun_dashboard/internal/prep"
	"mun_dashboard/internal/service"
)

// DelegateHandler 處理代表準備資料的請求
type DelegateHandler struct {
	delegateService *service.DelegateService
	now             func() time.Time
}

func NewDelegateHandler(delegateService *service.DelegateService) *DelegateHandler {
	return &DelegateHandler{delegateService: delegateService, now: time.Now}
}

func (h *DelegateHandler) session(c *gin.Context) (*service.DelegateSession, bool) {
	id, ok := identity(c)
	if !ok {
		return nil, false
	}
	ds, err := h.delegateService.Session(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return ds, true
}

// mutate 執行修改後回傳目前會議
func (h *DelegateHandler) mutate(c *gin.Context, fn func(store *prep.Store) error) {
	ds, ok := h.session(c)
	if !ok {
		return
	}
	if err := fn(ds.Store); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ds.Store.Active())
}

func indexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "錯誤的索引"})
		return 0, false
	}
	return index, true
}

func (h *DelegateHandler) GetState(c *gin.Context) {
	ds, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ds.Store.Snapshot())
}

func (h *DelegateHandler) AddConference(c *gin.Context) {
	ds, ok := h.session(c)
	if !ok {
		return
	}
	conf, err := ds.Store.AddConference()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conf)
}

func (h *DelegateHandler) RemoveConference(c *gin.Context) {
	ds, ok := h.session(c)
	if !ok {
		return
	}
	if err := ds.Store.RemoveConference(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ds.Store.Snapshot())
}

func (h *DelegateHandler) ActivateConference(c *gin.Context) {
	h.mutate(c, func(store *prep.Store) error {
		return store.SetActiveConference(c.Param("id"))
	})
}

func (h *DelegateHandler) UpdateActive(c *gin.Context) {
	var patch prep.ConferencePatch
	if !bindJSON(c, &patch) {
		return
	}
	h.mutate(c, func(store *prep.Store) error {
		return store.UpdateActive(patch)
	})
}

func (h *DelegateHandler) AddMatrixEntry(c *gin.Context) {
	var entry models.MatrixEntry
	if !bindJSON(c, &entry) {
		return
	}
	h.mutate(c, func(store *prep.Store) error {
		return store.AddMatrixEntry(entry)
	})
}

func (h *DelegateHandler) RemoveMatrixEntry(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	h.mutate(c, func(store *prep.Store) error {
		return store.RemoveMatrixEntry(index)
	})
}

func (h *DelegateHandler) ToggleChecklist(c *gin.Context) {
	h.mutate(c, func(store *prep.Store) error {
		return store.ToggleChecklist(c.Param("key"))
	})
}

func (h *DelegateHandler) AddSource(c *gin.Context) {
	var input struct {
		Source string `json:"source"`
	}
	if !bindJSON(c, &input) {
		return
	}
	h.mutate(c, func(store *prep.Store) error {
		return store.AddSource(prep.SourceList(c.Param("list")), input.Source)
	})
}

func (h *DelegateHandler) RemoveSource(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	h.mutate(c, func(store *prep.Store) error {
		return store.RemoveSource(prep.SourceList(c.Param("list")), index)
	})
}

func (h *DelegateHandler) AddResource(c *gin.Context) {
	var input models.Resource
	if !bindJSON(c, &input) {
		return
	}
	h.mutate(c, func(store *prep.Store) error {
		return store.AddResource(input.Name, input.URL)
	})
}

func (h *DelegateHandler) RemoveResource(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	h.mutate(c, func(store *prep.Store) error {
		return store.RemoveResource(index)
	})
}

func (h *DelegateHandler) Countdowns(c *gin.Context) {
	ds, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ds.Store.Countdowns(h.now()))
}

func (h *DelegateHandler) Save(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	if err := h.delegateService.Save(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已儲存"})
}

func (h *DelegateHandler) CloseSession(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	if err := h.delegateService.Close(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "準備資料已關閉"})
}
