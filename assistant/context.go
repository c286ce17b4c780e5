package assistant

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/quailyquaily/taskmorph/store"
)

const (
	// ContextPreamble opens every system message sent to the model.
	ContextPreamble = "Ты помощник по управлению задачами. Вот контекст."

	tasksHeader  = "Текущие открытые задачи:"
	noTasksText  = "Открытых задач нет."
	placeholder  = "-"
	blockDivider = "-"
)

// BuildTaskContext renders the visible tasks into the textual snapshot used
// as LLM context. Absent optional fields render as "-"; every block is
// followed by a divider line. With no tasks the fixed sentinel is returned
// instead of an empty list.
func BuildTaskContext(rows []store.TaskWithProject) string {
	if len(rows) == 0 {
		return noTasksText
	}

	lines := []string{tasksHeader}
	for _, row := range rows {
		task := row.Task
		project := placeholder
		if row.ProjectName != nil && *row.ProjectName != "" {
			project = *row.ProjectName
		}
		lines = append(lines, strings.Join([]string{
			fmt.Sprintf("ID: %d", task.ID),
			"Заголовок: " + task.Title,
			"Описание: " + task.Description,
			"Дедлайн: " + formatDate(task.Deadline),
			"Длительность(ч): " + strconv.FormatFloat(task.DurationHours, 'g', -1, 64),
			"Приоритет: " + task.Priority,
			"Важность: " + task.Importance,
			"Тип: " + task.Kind,
			"Начало события: " + formatTime(task.EventStart),
			"Окончание события: " + formatTime(task.EventEnd),
			"Проект: " + project,
		}, "\n"))
		lines = append(lines, blockDivider)
	}
	return strings.Join(lines, "\n")
}

// SystemContext prepends the assistant preamble to the rendered snapshot.
func SystemContext(rows []store.TaskWithProject) string {
	return ContextPreamble + "\n\n" + BuildTaskContext(rows)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return placeholder
	}
	return t.Format("2006-01-02")
}

func formatTime(t *time.Time) string {
	if t == nil {
		return placeholder
	}
	return t.Format(time.RFC3339)
}
