package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// The first generation of this system stored application documents
// under localized field names, and later snapshots carried both the
// localized and the English key for the same value. DecodeLegacy
// collapses either shape into the canonical Application so the rest of
// the engine never sees the duplication.

const legacyTimeLayout = "2006-01-02 15:04:05"

var legacyStatuses = map[string]Status{
	"대기": StatusPending,
	"승인": StatusApproved,
	"반려": StatusRejected,
	"취소": StatusCancelled,
}

var legacyCategories = map[string]Category{
	"장학금지원":   ScholarshipSupport,
	"경조비지원":   FamilyEventSupport,
	"선진산업시찰":  IndustryStudyTour,
	"주택지원":    HousingSupport,
	"복지연금":    PensionFund,
	"의료비지원":   MedicalSupport,
	"모성보호지원":  MaternitySupport,
	"다자녀가정지원": MultiChildSupport,
	"위로금지원":   ConsolationSupport,
	"생활복지지원":  LivingWelfareSupport,
	"문화활동지원":  CulturalActivity,
	"예방접종지원":  Vaccination,
}

// DecodeLegacy normalizes a raw application document. Canonical keys
// win when both a canonical and a legacy key are present.
func DecodeLegacy(doc map[string]any) (Application, error) {
	a := Application{
		ID:            pickString(doc, "id", "app_id"),
		UserID:        pickString(doc, "user_id", "사번"),
		RejectReason:  pickString(doc, "reject_reason", "반려의견"),
		AttachmentRef: pickString(doc, "attachment_ref", "첨부파일"),
		TargetName:    pickString(doc, "target_name", "대상자성명"),
		Account:       pickString(doc, "account", "계좌번호"),
		Detail:        pickString(doc, "detail", "세부내용"),
		Department:    pickString(doc, "department", "부서"),
		Rank:          pickString(doc, "rank", "직급"),
	}

	cat := pickString(doc, "category", "구분")
	if mapped, ok := legacyCategories[cat]; ok {
		a.Category = mapped
	} else {
		a.Category = Category(cat)
	}

	status := pickString(doc, "status", "상태")
	if mapped, ok := legacyStatuses[status]; ok {
		a.Status = mapped
	} else if status == "" {
		a.Status = StatusPending
	} else {
		a.Status = Status(status)
	}

	amount, err := pickAmount(doc, "amount", "신청금액")
	if err != nil {
		return Application{}, err
	}
	a.Amount = amount

	if raw := pickString(doc, "submitted_at", "신청일시"); raw != "" {
		t, err := time.Parse(legacyTimeLayout, raw)
		if err != nil {
			t, err = time.Parse(time.RFC3339, raw)
		}
		if err != nil {
			return Application{}, fmt.Errorf("%w: bad submitted_at %q", ErrValidation, raw)
		}
		a.SubmittedAt = t
	}

	if err := a.Validate(); err != nil {
		return Application{}, err
	}
	return a, nil
}

// DecodeLegacyExport parses a JSON array of raw application documents,
// the shape a first-generation datastore dump has. Documents without an
// id get one derived from their submission timestamp, the same scheme
// new submissions use.
func DecodeLegacyExport(raw []byte) ([]Application, error) {
	var docs []map[string]any
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("%w: malformed export: %v", ErrValidation, err)
	}

	apps := make([]Application, 0, len(docs))
	for i, doc := range docs {
		app, err := DecodeLegacy(doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if app.ID == "" {
			if app.SubmittedAt.IsZero() {
				return nil, fmt.Errorf("%w: document %d has neither id nor submitted_at", ErrValidation, i)
			}
			app.ID = strconv.FormatInt(app.SubmittedAt.UnixMilli(), 10)
		}
		apps = append(apps, app)
	}
	return apps, nil
}

func pickString(doc map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := doc[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func pickAmount(doc map[string]any, keys ...string) (int64, error) {
	for _, k := range keys {
		v, ok := doc[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case float64:
			return int64(n), nil
		case string:
			// Legacy forms carried thousands separators.
			s := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
			if s == "" {
				continue
			}
			parsed, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: bad amount %q", ErrValidation, n)
			}
			return parsed, nil
		}
	}
	return 0, nil
}
