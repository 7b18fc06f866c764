package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseReplyConformingOutput(t *testing.T) {
	raw := "Note : 17/20\n" +
		"Feedback : Très bonne copie dans l'ensemble.\n" +
		"Points forts : Raisonnement rigoureux, jointures maîtrisées.\n" +
		"Points faibles : Index manquant sur la dernière requête.\n"

	reply := ParseReply("deepseek-coder:6.7b", raw)

	require.True(t, reply.Conforming())
	require.NotNil(t, reply.Parsed)
	require.Equal(t, 17.0, reply.Parsed.Note)
	require.Equal(t, "Très bonne copie dans l'ensemble.", reply.Parsed.Feedback)
	require.Equal(t, "Raisonnement rigoureux, jointures maîtrisées.", reply.Parsed.Strengths)
	require.Equal(t, "Index manquant sur la dernière requête.", reply.Parsed.Weaknesses)
	require.False(t, reply.Parsed.LowConfidence)
	require.Equal(t, raw, reply.Raw)
}

func TestParseReplyCommaDecimal(t *testing.T) {
	reply := ParseReply("m", "Note : 12,5/20\nFeedback : Correct.")

	require.NotNil(t, reply.Parsed)
	require.Equal(t, 12.5, reply.Parsed.Note)
}

func TestParseReplyClampsNote(t *testing.T) {
	over := ParseReply("m", "Note : 25/20\nFeedback : Excellent.")
	require.NotNil(t, over.Parsed)
	require.Equal(t, 20.0, over.Parsed.Note)

	under := ParseReply("m", "Note : -3\nFeedback : Hors sujet.")
	require.NotNil(t, under.Parsed)
	require.Equal(t, 0.0, under.Parsed.Note)
}

func TestParseReplyCaseInsensitiveLabels(t *testing.T) {
	reply := ParseReply("m", "NOTE : 8\nFEEDBACK : Insuffisant.\nPOINTS FORTS : Effort visible.")

	require.NotNil(t, reply.Parsed)
	require.Equal(t, 8.0, reply.Parsed.Note)
	require.Equal(t, "Insuffisant.", reply.Parsed.Feedback)
	require.Equal(t, "Effort visible.", reply.Parsed.Strengths)
}

func TestParseReplyFirstOccurrenceWins(t *testing.T) {
	reply := ParseReply("m", "Note : 15/20\nFeedback : Bien.\nNote : 3/20")

	require.NotNil(t, reply.Parsed)
	require.Equal(t, 15.0, reply.Parsed.Note)
}

func TestParseReplyMissingNoteIsLowConfidence(t *testing.T) {
	reply := ParseReply("m", "Feedback : La copie traite le sujet correctement.")

	require.NotNil(t, reply.Parsed)
	require.Equal(t, 0.0, reply.Parsed.Note)
	require.True(t, reply.Parsed.LowConfidence)
}

func TestParseReplyNoteWithoutNumberIsLowConfidence(t *testing.T) {
	reply := ParseReply("m", "Note : excellente\nFeedback : Rien à redire.")

	require.NotNil(t, reply.Parsed)
	require.Equal(t, 0.0, reply.Parsed.Note)
	require.True(t, reply.Parsed.LowConfidence)
}

func TestParseReplyLabelFreeOutputIsNonConforming(t *testing.T) {
	reply := ParseReply("m", "Cette copie est globalement satisfaisante et mérite environ quatorze.")

	require.False(t, reply.Conforming())
	require.Nil(t, reply.Parsed)
	require.NotNil(t, reply.Unparsed)
	require.Equal(t, NonConformingReason, reply.Unparsed.Reason)
}

func TestParseReplyMissingOptionalFieldsStayEmpty(t *testing.T) {
	reply := ParseReply("m", "Note : 10/20\nFeedback : Moyen.")

	require.NotNil(t, reply.Parsed)
	require.Empty(t, reply.Parsed.Strengths)
	require.Empty(t, reply.Parsed.Weaknesses)
}
