package exporter

import (
	"fmt"
	"sort"

	"audience-bot/internal/domain"
)

// ConsoleExporter реализует интерфейс Exporter для вывода списка аудитории в консоль.
type ConsoleExporter struct{}

// NewConsoleExporter создает новый экземпляр ConsoleExporter.
func NewConsoleExporter() *ConsoleExporter {
	return &ConsoleExporter{}
}

// Export выводит категории итогового списка аудитории в консоль.
func (e *ConsoleExporter) Export(result *domain.ExtractionResult) error {
	printCategory("Participants", result.Participants)
	printCategory("Mentioned only", result.MentionedOnly)
	printCategory("Channels", result.Channels)
	return nil
}

func printCategory(title string, category map[domain.ProfileID]domain.AudienceProfile) {
	fmt.Printf("--- %s (%d) ---\n", title, len(category))
	if len(category) == 0 {
		fmt.Println("none")
		return
	}
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
	for i, profile := range profiles {
		if profile.Username != "" {
			fmt.Printf("%d. %s (@%s)\n", i+1, profile.DisplayName, profile.Username)
		} else {
			fmt.Printf("%d. %s\n", i+1, profile.DisplayName)
		}
	}
}
