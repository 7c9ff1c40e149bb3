package prep

import (
	"fmt"
	"sort"

	"mun_dashboard/internal/models"
	"mun_dashboard/internal/utils"
)

const SchemaVersion = 1

type document struct {
	SchemaVersion int `json:"schemaVersion"`
	models.DelegateState
}

func EncodeDocument(state models.DelegateState) ([]byte, error) {
	return utils.Marshal(document{SchemaVersion: SchemaVersion, DelegateState: state})
}

// DecodeDocument 防禦性解碼代表端文件；無法解析時回傳預設狀態與錯誤
func DecodeDocument(data []byte) (models.DelegateState, error) {
	var state models.DelegateState
	raw, err := utils.ParseDocument(data)
	if err != nil {
		normalize(&state, utils.NewID)
		return state, fmt.Errorf("decode delegate document: %w", err)
	}

	version := 0
	utils.Field(raw, "schemaVersion", &version)

	seen := map[string]bool{}
	utils.Each(raw, "conferences", func(item utils.RawDocument) {
		if item == nil {
			return
		}
		c, ok := decodeConference(item, version)
		if !ok || seen[c.ID] {
			return
		}
		seen[c.ID] = true
		state.Conferences = append(state.Conferences, c)
	})
	utils.Field(raw, "activeConferenceId", &state.ActiveConferenceID)

	normalize(&state, utils.NewID)
	return state, nil
}

func decodeConference(raw utils.RawDocument, version int) (models.Conference, bool) {
	var id string
	if !utils.Field(raw, "id", &id) || id == "" {
		return models.Conference{}, false
	}
	c := models.NewConference(id)
	utils.Field(raw, "name", &c.Name)
	utils.Field(raw, "country", &c.Country)
	utils.Field(raw, "delegateEmail", &c.DelegateEmail)
	utils.Field(raw, "stanceOverview", &c.StanceOverview)
	utils.Field(raw, "committeeCount", &c.CommitteeCount)
	c.CommitteeCount = clamp(c.CommitteeCount, 0, models.MaxCommitteeCount)
	utils.Slice(raw, "committees", &c.Committees)
	utils.Each(raw, "committeeMatrixEntries", func(e models.MatrixEntry) {
		c.CommitteeMatrix = append(c.CommitteeMatrix, e)
	})
	if version < 1 && len(c.CommitteeMatrix) == 0 {
		migrateLegacyMatrix(raw, &c)
	}
	utils.Field(raw, "countdownDate", &c.CountdownDate)
	utils.Field(raw, "conferenceEndDate", &c.ConferenceEndDate)
	utils.Field(raw, "positionPaperDeadline", &c.PositionPaperDeadline)

	var checklist map[string]bool
	if utils.Field(raw, "checklist", &checklist) {
		for _, k := range models.ChecklistKeys {
			c.Checklist[k] = checklist[k]
		}
	}
	utils.Slice(raw, "trustedSources", &c.TrustedSources)
	utils.Slice(raw, "nationSources", &c.NationSources)
	utils.Each(raw, "uploadedResources", func(r models.Resource) {
		c.UploadedResources = append(c.UploadedResources, r)
	})
	return c, true
}

// migrateLegacyMatrix v0：committeeMatrix (委員會 -> 名字) 轉為矩陣列，代表團留空
func migrateLegacyMatrix(raw utils.RawDocument, c *models.Conference) {
	var legacy map[string]string
	if !utils.Field(raw, "committeeMatrix", &legacy) {
		return
	}
	for _, committee := range sortedKeys(legacy) {
		c.CommitteeMatrix = append(c.CommitteeMatrix, models.MatrixEntry{
			Committee: committee,
			FirstName: legacy[committee],
		})
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
