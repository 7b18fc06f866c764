package sqlcheck

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckValidStatements(t *testing.T) {
	text := "select nom, prenom from clients where actif = 1 order by nom;\n" +
		"update commandes set statut = 'livree' where id = 9;"

	require.Empty(t, Check(text))
}

func TestCheckReportsInvalidStatement(t *testing.T) {
	text := "select nom from clients;\nselect nom from where actif = 1;"

	issues := Check(text)
	require.Len(t, issues, 1)
	require.Equal(t, 2, issues[0].Position)
	require.Contains(t, issues[0].Statement, "select nom from where")
	require.NotEmpty(t, issues[0].Detail)
}

func TestCheckIgnoresProse(t *testing.T) {
	text := "La normalisation consiste à décomposer les tables pour éliminer " +
		"les redondances. Une relation en troisième forme normale ne contient " +
		"aucune dépendance transitive."

	require.Empty(t, Check(text))
}

func TestCheckFindsStatementAfterProse(t *testing.T) {
	text := "Voici ma requête : select nom from clients where actif = 1;"

	require.Empty(t, Check(text))

	broken := "Voici ma requête : select from clients where;"
	issues := Check(broken)
	require.Len(t, issues, 1)
	require.Equal(t, 1, issues[0].Position)
}

func TestCheckEmptyText(t *testing.T) {
	require.Empty(t, Check(""))
	require.Empty(t, Check(";;;"))
}
