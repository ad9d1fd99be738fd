package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/affmigrate/internal/models"
)

// roleItem implements [list.Item] for a selectable user role.
type roleItem struct {
	role     models.RoleCount
	selected bool
}

func (i roleItem) FilterValue() string { return i.role.Role }

func (i roleItem) Title() string {
	mark := "[ ]"
	if i.selected {
		mark = "[x]"
	}
	return fmt.Sprintf("%s %s", mark, i.role.Role)
}

func (i roleItem) Description() string {
	if i.role.Users == 1 {
		return "1 user"
	}
	return fmt.Sprintf("%d users", i.role.Users)
}

func newRoleList(roles []models.RoleCount, preselected []string) list.Model {
	chosen := make(map[string]bool, len(preselected))
	for _, r := range preselected {
		chosen[r] = true
	}

	items := make([]list.Item, len(roles))
	for i, r := range roles {
		items[i] = roleItem{role: r, selected: chosen[r.Role]}
	}

	l := list.New(items, list.NewDefaultDelegate(), defaultWidth, defaultHeight)
	l.Title = "Roles to migrate"
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(false)
	return l
}
