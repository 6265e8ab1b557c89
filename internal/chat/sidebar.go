// Copyright (c) 2026 Kaiwa. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chat

import (
	"time"

	"github.com/taibuivan/kaiwa/pkg/textnorm"
)

// # Sidebar Grouping

// Recency bucket labels, in display order.
const (
	GroupToday     = "Today"
	GroupYesterday = "Yesterday"
	GroupWeek      = "Previous 7 days"
	GroupOlder     = "Older"
)

// Group is one recency bucket of the sidebar.
type Group struct {
	Label string
	Chats []Chat
}

/*
GroupByRecency buckets conversations by their last activity.

Description: Input order is preserved inside each bucket, so a list that
arrives pinned-first stays pinned-first. Empty buckets are omitted. Day
boundaries follow the local midnight of the reference time.

Parameters:
  - chats: []Chat
  - now: time.Time

Returns:
  - []Group: Non-empty buckets in Today, Yesterday, Previous 7 days, Older order
*/
func GroupByRecency(chats []Chat, now time.Time) []Group {
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterdayStart := todayStart.AddDate(0, 0, -1)
	weekStart := todayStart.AddDate(0, 0, -7)

	buckets := map[string][]Chat{}
	for _, conversation := range chats {
		updatedAt := conversation.UpdatedAt.In(now.Location())

		label := GroupOlder
		switch {
		case !updatedAt.Before(todayStart):
			label = GroupToday
		case !updatedAt.Before(yesterdayStart):
			label = GroupYesterday
		case !updatedAt.Before(weekStart):
			label = GroupWeek
		}

		buckets[label] = append(buckets[label], conversation)
	}

	groups := []Group{}
	for _, label := range []string{GroupToday, GroupYesterday, GroupWeek, GroupOlder} {
		if members := buckets[label]; len(members) > 0 {
			groups = append(groups, Group{Label: label, Chats: members})
		}
	}

	return groups
}

/*
Search filters conversations by a case- and accent-insensitive match on
the title or the last message.

Parameters:
  - chats: []Chat
  - query: string

Returns:
  - []Chat: Matching conversations in their original order
*/
func Search(chats []Chat, query string) []Chat {
	if textnorm.Fold(query) == "" {
		return chats
	}

	matches := []Chat{}
	for _, conversation := range chats {
		if textnorm.Contains(conversation.Title, query) {
			matches = append(matches, conversation)
			continue
		}
		if conversation.LastMessage != nil && textnorm.Contains(conversation.LastMessage.Content, query) {
			matches = append(matches, conversation)
		}
	}

	return matches
}
