package moodle

import (
	"fmt"
	"sort"
	"strings"
)

const separator = "=================================================="

// FormatCourse flattens a crawled course into the plain text document that
// is stored for the user.
func FormatCourse(content CourseContent) string {
	var b strings.Builder

	fmt.Fprintf(&b, "--- COURSE: %s ---\n", content.Title)
	if content.Course.Url != nil {
		fmt.Fprintf(&b, "LINK: %s\n", content.Course.Url)
	}
	if content.Overview != "" {
		fmt.Fprintf(&b, "\n[OVERVIEW]\n%s\n", content.Overview)
	}

	for _, section := range content.Sections {
		for _, a := range section.Activities {
			writeActivity(&b, a)
		}
	}

	return b.String()
}

func writeActivity(b *strings.Builder, a ActivityContent) {
	activity := a.Activity

	switch activity.Type {
	case ACTIVITY_FILE, ACTIVITY_FOLDER:
		fmt.Fprintf(b, "\n%s | %s: %s -> %s\n", activity.Week, strings.ToUpper(activity.Type.String()), activity.Name, activity.Url)
		writeFileTexts(b, a.FileTexts)
		return
	}

	fmt.Fprintf(b, "\n%s\n", separator)
	fmt.Fprintf(b, "WEEK: %s\n", activity.Week)
	if a.Section != "" && a.Section != activity.Week {
		fmt.Fprintf(b, "SECTION: %s\n", a.Section)
	}
	fmt.Fprintf(b, "TITLE: %s (%s)\n", activity.Name, activity.Type)
	fmt.Fprintf(b, "LINK: %s\n", activity.Url)
	b.WriteString("--------------------------------------------------\n")
	if a.Body != "" {
		b.WriteString(a.Body)
		b.WriteByte('\n')
	}
	writeList(b, "VIDEO", a.Videos)
	writeList(b, "FILE", a.Files)
	writeList(b, "LINK", a.Links)
	writeFileTexts(b, a.FileTexts)
	fmt.Fprintf(b, "%s\n", separator)
}

func writeList(b *strings.Builder, tag string, items []string) {
	for _, item := range items {
		fmt.Fprintf(b, "[%s]: %s\n", tag, item)
	}
}

func writeFileTexts(b *strings.Builder, texts map[string]string) {
	keys := make([]string, 0, len(texts))
	for k := range texts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "[FILE TEXT]: %s\n%s\n", k, texts[k])
	}
}
