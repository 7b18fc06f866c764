package ai

import "strings"

// MaxNote is the grading scale ceiling communicated to the oracle.
const MaxNote = 20.0

// DefaultMaxPromptChars bounds the submission text embedded in the prompt.
// The oracle has a finite context window; truncation is a deterministic
// prefix cut so the same submission always produces the same prompt.
const DefaultMaxPromptChars = 4000

// TruncateText returns the first max runes of text unchanged.
func TruncateText(text string, max int) string {
	if max <= 0 {
		return text
	}

	runes := []rune(text)
	if len(runes) <= max {
		return text
	}

	return string(runes[:max])
}

// BuildPrompt assembles the strict-format correction prompt. The four labels
// requested here are the anchors the parser extracts against, and the worked
// example pins the expected shape of the reply.
func BuildPrompt(input GradeInput, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxPromptChars
	}

	submission := TruncateText(input.Submission, maxChars)

	builder := strings.Builder{}
	builder.WriteString("Tu es un correcteur automatique. Évalue la copie d'un étudiant par rapport à l'énoncé et à la correction de référence.\n\n")
	builder.WriteString("Réponds exactement avec les quatre champs suivants, dans cet ordre, et rien d'autre :\n\n")
	builder.WriteString("Note : <note sur 20>\n")
	builder.WriteString("Feedback : <appréciation générale>\n")
	builder.WriteString("Points forts : <ce qui est réussi>\n")
	builder.WriteString("Points faibles : <ce qui est à améliorer>\n\n")
	builder.WriteString("Exemple de réponse attendue :\n\n")
	builder.WriteString("Note : 14/20\n")
	builder.WriteString("Feedback : Bonne maîtrise d'ensemble malgré quelques imprécisions.\n")
	builder.WriteString("Points forts : Raisonnement clair, requêtes correctement formulées.\n")
	builder.WriteString("Points faibles : Clause GROUP BY mal utilisée, optimisation absente.\n\n")

	if input.ExerciseTitle != "" {
		builder.WriteString("Exercice : ")
		builder.WriteString(input.ExerciseTitle)
		builder.WriteString("\n\n")
	}

	builder.WriteString("Énoncé et correction de référence :\n")
	builder.WriteString(input.Statement)
	builder.WriteString("\n\nCopie de l'étudiant :\n")
	builder.WriteString(submission)
	builder.WriteString("\n\nNe réponds que par ces quatre champs.")

	return builder.String()
}
