// AngelaMos | 2026
// prompts.go

package voice

import (
	"fmt"
	"time"
)

const (
	draftMaxTokens = 300
	noteMaxTokens  = 500
)

func taskDraftPrompt(today time.Time) string {
	return fmt.Sprintf(`You help a user add items to their to-do list by voice.
Extract a single task from the transcript.

Rules:
1. title: a short, imperative task title.
2. description: optional extra details, or null.
3. priority: "high" for urgent or important wording, "low" for someday or not urgent wording, otherwise "medium".
4. deadline: the due date as YYYY-MM-DD when a date is mentioned, resolving relative dates
   such as "tomorrow", "on Friday" or "by the end of the week" against today. Otherwise null.
5. deadline_time: the due time as HH:mm (24-hour) when a time is mentioned, otherwise null.
   Never give a time without a date.
6. Keep the language of the transcript.

Today is %s (%s).

Reply with JSON only:
{"title": string, "description": string|null, "priority": "low"|"medium"|"high", "deadline": string|null, "deadline_time": string|null}`,
		today.Format("2006-01-02"),
		today.Weekday(),
	)
}

func noteCleanupPrompt(date string) string {
	return fmt.Sprintf(`You help a user keep a work journal.
Turn the raw voice transcript describing what they did at work into a clear, professional journal entry.

Rules:
1. Keep every relevant fact about the work done.
2. Fix grammar and style.
3. Remove filler words and hesitations.
4. Separate multiple activities with commas or semicolons.
5. Keep the language of the transcript and a natural, professional tone.
6. Reply with the entry text only, without any commentary.

Entry date: %s`, date)
}
