package openai

import (
	"fmt"
	"strings"

	"pldft/internal/sanctions/models"
)

const classifierSystemPrompt = "You are an expert Anti-Money Laundering (AML) analyst. " +
	"Determine if the following two sanction entries refer to the SAME individual or entity."

const summarySystemPrompt = "Eres un Asistente de Cumplimiento Normativo especializado en PLD/FT " +
	"(Prevención de Lavado de Dinero / Financiamiento al Terrorismo). " +
	"Analiza los resultados de búsqueda de las listas de sanciones (ONU, México, SAT 69-B) " +
	"contra la consulta del usuario."

func classifierPrompt(a, b models.SanctionRecord) string {
	var sb strings.Builder
	sb.WriteString(classifierSystemPrompt)
	sb.WriteString("\n\n")
	writeEntity(&sb, "Entity A", a)
	writeEntity(&sb, "Entity B", b)
	sb.WriteString("Are they the same person? Reply ONLY with 'YES' or 'NO'.")
	return sb.String()
}

func writeEntity(sb *strings.Builder, label string, rec models.SanctionRecord) {
	aliases := make([]string, 0, len(rec.Aliases))
	for _, a := range rec.Aliases {
		aliases = append(aliases, a.Name)
	}
	fmt.Fprintf(sb, "%s:\nName: %s\nSource: %s\nStrong key: %s\nAliases: %s\nProgram: %s\n\n",
		label, rec.EntityName, rec.Source, rec.StrongKey, strings.Join(aliases, "; "), rec.Program)
}

func summaryPrompt(query, formatted string) string {
	return summarySystemPrompt + "\n\n" +
		"Consulta del Usuario: " + query + "\n\n" +
		"Resultados de Búsqueda:\n" + formatted + "\n" +
		"Por favor, proporciona un resumen conciso en ESPAÑOL.\n" +
		"1. Indica si hay una coincidencia probable basada en la similitud del nombre y la fuente.\n" +
		"2. Si hay coincidencias, resalta la más relevante, indicando la fuente y el programa o causa.\n" +
		"3. Asume que el usuario es un oficial de cumplimiento verificando a un cliente.\n" +
		"Mantén un tono profesional y breve."
}
