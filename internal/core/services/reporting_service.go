package services

import (
	"fmt"
	"sort"
	"strings"

	"audience-bot/internal/domain"
)

// Заголовки колонок и порядок страниц табличного отчета.
var (
	excelColumns = []string{
		"Дата экспорта",
		"Username",
		"Отображаемое имя",
		"Имя",
		"Фамилия",
		"Описание",
		"Дата регистрации",
		"Наличие канала",
	}

	sheetOrder = []struct {
		title string
		pick  func(*domain.ExtractionResult) map[domain.ProfileID]domain.AudienceProfile
	}{
		{"Участники", func(r *domain.ExtractionResult) map[domain.ProfileID]domain.AudienceProfile { return r.Participants }},
		{"Упомянутые", func(r *domain.ExtractionResult) map[domain.ProfileID]domain.AudienceProfile { return r.MentionedOnly }},
		{"Каналы", func(r *domain.ExtractionResult) map[domain.ProfileID]domain.AudienceProfile { return r.Channels }},
	}
)

// ReportPolicy выбирает формат доставки по числу участников.
// Только участники влияют на выбор: упомянутые и каналы не учитываются.
type ReportPolicy struct {
	// Threshold — порог числа участников; строго большее значение
	// переключает отчет на таблицу.
	Threshold int
	// ForceExcel безусловно переводит отчет в табличный формат.
	ForceExcel bool
}

// Choose возвращает формат отчета: таблица, если участников строго
// больше порога, иначе текст.
func (p ReportPolicy) Choose(result *domain.ExtractionResult) domain.ReportFormat {
	if p.ForceExcel {
		return domain.FormatExcel
	}
	if result.ParticipantCount() > p.Threshold {
		return domain.FormatExcel
	}
	return domain.FormatPlainText
}

// ExcelRenderer сериализует табличную модель отчета в байты xlsx.
type ExcelRenderer interface {
	Render(report *domain.ExcelReport) ([]byte, error)
}

// ReportingService собирает отчет из результата извлечения:
// применяет политику формата, строит текстовый список или страницы
// таблицы и рендерит xlsx через внешний сериализатор.
type ReportingService struct {
	policy   ReportPolicy
	renderer ExcelRenderer
}

// NewReportingService создает новый экземпляр ReportingService.
func NewReportingService(policy ReportPolicy, renderer ExcelRenderer) *ReportingService {
	return &ReportingService{policy: policy, renderer: renderer}
}

// Build строит отчет для результата извлечения.
func (s *ReportingService) Build(result *domain.ExtractionResult, metadata domain.ReportMetadata) (*domain.Report, error) {
	metadata.ParticipantCount = result.ParticipantCount()
	format := s.policy.Choose(result)

	model := &domain.AudienceReport{}
	if format == domain.FormatPlainText {
		list := BuildTextList(result)
		model.SetText(metadata, list)
		if err := model.Validate(); err != nil {
			return nil, err
		}
		return &domain.Report{
			Format:   format,
			Metadata: metadata,
			Text:     strings.Join(list.Lines, "\n"),
		}, nil
	}

	excel := BuildExcelReport(result, metadata)
	model.SetExcel(metadata, excel)
	if err := model.Validate(); err != nil {
		return nil, err
	}
	content, err := s.renderer.Render(excel)
	if err != nil {
		return nil, fmt.Errorf("failed to render excel report: %w", err)
	}
	return &domain.Report{
		Format:     format,
		Metadata:   metadata,
		ExcelBytes: content,
	}, nil
}

// BuildTextList строит текстовый список участников: по строке
// "Отображаемое имя (username)" на участника; скобки опускаются,
// если username отсутствует.
func BuildTextList(result *domain.ExtractionResult) *domain.TextList {
	profiles := sortedProfiles(result.Participants)
	lines := make([]string, 0, len(profiles))
	for _, profile := range profiles {
		line := profile.DisplayName
		if profile.Username != "" {
			line = fmt.Sprintf("%s (%s)", profile.DisplayName, profile.Username)
		}
		lines = append(lines, line)
	}
	return &domain.TextList{Lines: lines}
}

// BuildExcelReport строит табличную модель: страница на категорию,
// фиксированный набор колонок.
func BuildExcelReport(result *domain.ExtractionResult, metadata domain.ReportMetadata) *domain.ExcelReport {
	report := &domain.ExcelReport{}
	for _, sheet := range sheetOrder {
		rows := buildRows(sortedProfiles(sheet.pick(result)), metadata)
		report.Sheets = append(report.Sheets, domain.SheetModel{
			Name:    sheet.title,
			Columns: excelColumns,
			Rows:    rows,
		})
	}
	return report
}

func buildRows(profiles []domain.AudienceProfile, metadata domain.ReportMetadata) []map[string]string {
	rows := make([]map[string]string, 0, len(profiles))
	for _, profile := range profiles {
		hasChannel := ""
		if profile.HasChannel {
			hasChannel = "да"
		}
		rows = append(rows, map[string]string{
			"Дата экспорта":    metadata.ExportedAt.Format("2006-01-02 15:04:05"),
			"Username":         profile.Username,
			"Отображаемое имя": profile.DisplayName,
			"Имя":              profile.FirstName,
			"Фамилия":          profile.LastName,
			"Описание":         profile.Description,
			"Дата регистрации": profile.RegisteredAt,
			"Наличие канала":   hasChannel,
		})
	}
	return rows
}

// sortedProfiles возвращает профили категории, отсортированные по
// (username, отображаемое имя); пустая строка — лексикографический минимум.
func sortedProfiles(category map[domain.ProfileID]domain.AudienceProfile) []domain.AudienceProfile {
	profiles := make([]domain.AudienceProfile, 0, len(category))
	for _, profile := range category {
		profiles = append(profiles, profile)
	}
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].Username != profiles[j].Username {
			return profiles[i].Username < profiles[j].Username
		}
		return profiles[i].DisplayName < profiles[j].DisplayName
	})
	return profiles
}
