// Package invoice builds the NFS-e XML envelope from sale data. It performs
// no I/O; signing and submission happen elsewhere.
package invoice

import (
	"fmt"
	"strings"
	"time"

	"nfse-pipeline/internal/domain"
)

const envelope = `<?xml version="1.0" encoding="UTF-8"?>
<NFSe>
  <InfNFSe>
    <Numero>%s</Numero>
    <DataEmissao>%s</DataEmissao>
    <Servico>
      <Valores>
        <ValorServicos>%.2f</ValorServicos>
      </Valores>
      <Discriminacao>%s</Discriminacao>
    </Servico>
  </InfNFSe>
</NFSe>`

func Generate(sale *domain.Sale) string {
	return fmt.Sprintf(envelope,
		sale.ID,
		sale.CreatedAt.UTC().Format(time.RFC3339Nano),
		sale.Amount,
		escapeXML(sale.Description),
	)
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}
