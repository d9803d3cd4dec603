package domain

// ProfileType определяет категорию профиля в итоговом списке аудитории.
type ProfileType string

const (
	TypeParticipant   ProfileType = "participant"
	TypeMentionedOnly ProfileType = "mentioned_only"
	TypeChannel       ProfileType = "channel"
	TypeBot           ProfileType = "bot"
)

// AudienceProfile — разрешенная, дедуплицированная запись об одной идентичности.
// Description и RegisteredAt заполняются только обогащением через API
// и могут быть пустыми.
type AudienceProfile struct {
	ID           ProfileID
	Type         ProfileType
	Username     string
	DisplayName  string
	FirstName    string
	LastName     string
	HasChannel   bool
	Description  string
	RegisteredAt string
}

// ExtractionResult — итоговый список аудитории: три отображения
// ProfileID → AudienceProfile. Инварианты:
//   - идентичность из Participants не встречается в MentionedOnly;
//   - идентичность из Channels не встречается ни в Participants, ни в MentionedOnly.
// Приоритет категорий: channel > participant > mentioned-only.
// Вставка в категорию большего приоритета вытесняет идентичность из меньших.
type ExtractionResult struct {
	Participants  map[ProfileID]AudienceProfile
	MentionedOnly map[ProfileID]AudienceProfile
	Channels      map[ProfileID]AudienceProfile
}

// NewExtractionResult создает пустой результат извлечения.
func NewExtractionResult() *ExtractionResult {
	return &ExtractionResult{
		Participants:  make(map[ProfileID]AudienceProfile),
		MentionedOnly: make(map[ProfileID]AudienceProfile),
		Channels:      make(map[ProfileID]AudienceProfile),
	}
}

// AddParticipant вставляет профиль в участники,
// удаляя идентичность из категории "только упомянутые".
func (r *ExtractionResult) AddParticipant(profile AudienceProfile) {
	delete(r.MentionedOnly, profile.ID)
	r.Participants[profile.ID] = profile
}

// AddMentioned вставляет профиль в "только упомянутые".
// Если идентичность уже является участником, вставка игнорируется.
func (r *ExtractionResult) AddMentioned(profile AudienceProfile) {
	if _, ok := r.Participants[profile.ID]; ok {
		return
	}
	r.MentionedOnly[profile.ID] = profile
}

// AddChannel вставляет профиль в каналы,
// удаляя идентичность из участников и "только упомянутых".
func (r *ExtractionResult) AddChannel(profile AudienceProfile) {
	delete(r.Participants, profile.ID)
	delete(r.MentionedOnly, profile.ID)
	r.Channels[profile.ID] = profile
}

// Merge вливает другой результат, повторно применяя правила категорий.
func (r *ExtractionResult) Merge(other *ExtractionResult) {
	if other == nil {
		return
	}
	for _, profile := range other.Participants {
		r.AddParticipant(profile)
	}
	for _, profile := range other.MentionedOnly {
		r.AddMentioned(profile)
	}
	for _, profile := range other.Channels {
		r.AddChannel(profile)
	}
}

// Finalize повторно утверждает инварианты эксклюзивности.
// Сообщения обрабатываются в порядке входа, поэтому классификация
// "участник" может прийти позже классификации "упомянутый" для той же
// идентичности; завершающий проход убирает такие остатки.
func (r *ExtractionResult) Finalize() {
	for id := range r.MentionedOnly {
		if _, ok := r.Participants[id]; ok {
			delete(r.MentionedOnly, id)
		}
	}
	for id := range r.Channels {
		if _, ok := r.Participants[id]; ok {
			delete(r.Channels, id)
		}
	}
}

// ParticipantCount возвращает число участников.
// Только эта величина влияет на выбор формата отчета.
func (r *ExtractionResult) ParticipantCount() int {
	return len(r.Participants)
}

// MentionedCount возвращает число "только упомянутых".
func (r *ExtractionResult) MentionedCount() int {
	return len(r.MentionedOnly)
}

// ChannelCount возвращает число каналов.
func (r *ExtractionResult) ChannelCount() int {
	return len(r.Channels)
}
