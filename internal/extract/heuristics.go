package extract

// Heuristics holds every tunable constant of the positional parsers. The
// defaults are calibrated against the student-records portal as it renders
// today, they are expected to drift when the portal is redesigned.
type Heuristics struct {
	// A subject header must be longer than this many runes.
	MinSubjectLen int `json:"min_subject_len"`
	// A subject header must contain at least one of these (uppercase) fragments.
	SubjectKeywords []string `json:"subject_keywords"`
	// Extra keywords only accepted on the attendance page, where online
	// course variants are listed separately.
	AttendanceKeywords []string `json:"attendance_keywords"`
	// A subject header must not contain any of these whole words/phrases,
	// they are menu and navigation labels.
	DenyTerms []string `json:"deny_terms"`
	// Lines that are skipped outright on the grades page.
	GradeSkipLabels []string `json:"grade_skip_labels"`

	GradeLookback    int     `json:"grade_lookback"`
	GradeLookahead   int     `json:"grade_lookahead"`
	MaxRawGrade      float64 `json:"max_raw_grade"`
	AbsenceLookahead int     `json:"absence_lookahead"`
	PctLookahead     int     `json:"pct_lookahead"`
	// Number of lines grouped per subject by the attendance fallback parser.
	AttendanceBlockLines int `json:"attendance_block_lines"`
	// Absence counts above this in the fallback parser are treated as
	// percentages that were picked up by mistake.
	FallbackMaxAbsences int `json:"fallback_max_absences"`
	ScheduleLookahead   int `json:"schedule_lookahead"`
	HolidayDayWindow    int `json:"holiday_day_window"`
	HolidayDateWindow   int `json:"holiday_date_window"`
	ClassDayWindow      int `json:"class_day_window"`
	EventTitleLen       int `json:"event_title_len"`
}

func DefaultHeuristics() Heuristics {
	return Heuristics{
		MinSubjectLen: 10,
		SubjectKeywords: []string{
			"FUNDAMENTOS", "COMPUTAÇÃO", "ENGENHARIA", "INTRODUÇÃO",
			"ALGORITMOS", "PROGRAMAÇÃO", "MATEMÁTIC", "CIDADANIA",
			"ÉTICA", "ESPIRITUALIDADE", "LEITURA", "INTERPRETAÇÃO",
			"TEXTO", "DADOS", "INFRAESTRUTURA", "SOLUÇÕES",
		},
		AttendanceKeywords: []string{"ON-LINE", "ONLINE"},
		DenyTerms: []string{
			"AVALIAÇÃO", "AVALIAÇÃO INSTITUCIONAL", "DISCIPLINA", "DISCIPLINAS",
			"CALENDÁRIO", "NOTAS", "FREQUÊNCIA", "FALTAS", "CADASTRO",
			"SECRETARIA", "SECRETARIA VIRTUAL", "FINANCEIRO", "BIBLIOTECA",
			"IDIOMA", "SAIR", "AVISO", "INTELIGÊNCIA ARTIFICIAL", "RA:",
			"SÉRIE", "PERÍODO", "TURMA", "STATUS", "SITUAÇÃO", "DOCENTE",
			"DIA DA SEMANA", "TODOS", "HORÁRIO DE AULAS", "UNIVERSIDADE",
		},
		GradeSkipLabels: []string{
			"Notas", "Notas e Faltas", "Gráfico de notas", "Boletim", "Nota",
			"Situação do aluno", "Em andamento", "Aprovado", "Reprovado",
		},
		GradeLookback:        4,
		GradeLookahead:       9,
		MaxRawGrade:          100,
		AbsenceLookahead:     4,
		PctLookahead:         7,
		AttendanceBlockLines: 10,
		FallbackMaxAbsences:  60,
		ScheduleLookahead:    5,
		HolidayDayWindow:     6,
		HolidayDateWindow:    4,
		ClassDayWindow:       5,
		EventTitleLen:        80,
	}
}
