// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// Category names the view a conversation belongs to. Each category keeps one
// conversation per user.
type Category string

const (
	CategoryChat   Category = "chat"   // interview coaching
	CategoryMental Category = "mental" // wellness journal
	CategoryResume Category = "resume" // resume review
	CategoryTodo   Category = "todo"   // to-do generation
)

// BuiltinCategories lists the categories that ship with default prompts.
var BuiltinCategories = []Category{CategoryChat, CategoryMental, CategoryResume, CategoryTodo}

// String returns the category name.
func (c Category) String() string {
	return string(c)
}

// Valid reports whether c is usable as a storage key and URL path segment:
// 1-64 characters of lowercase letters, digits, '-' or '_'.
func (c Category) Valid() bool {
	if len(c) == 0 || len(c) > 64 {
		return false
	}
	for _, r := range c {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
