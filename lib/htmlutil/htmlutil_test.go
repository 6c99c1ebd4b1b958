package htmlutil

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const fixture = `<html><body>
<ul class="topics">
  <li class="section" id="section-1">
    <h3 class="sectionname">Semana 2 - Estruturas de Repetição</h3>
    <ul class="section">
      <li class="activity"><a href="/mod/page/view.php?id=10">  Leitura
        obrigatória </a></li>
      <li class="activity"><a href="#top">skip</a></li>
      <li class="activity"><a href="javascript:void(0)">skip</a></li>
    </ul>
  </li>
  <li class="section" id="section-2">
    <div class="content"><a id="orphan" href="https://other.example.com/x">Externo</a></div>
  </li>
</ul>
<script>var x = "not text";</script>
</body></html>`

func TestGetAnchors(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fixture))
	require.NoError(t, err)

	base, err := url.Parse("https://lms.example.edu/course/view.php?id=3")
	require.NoError(t, err)

	anchors := GetAnchors(context.Background(), base, doc.Find("a"))
	require.Len(t, anchors, 2)
	require.Equal(t, "Leitura obrigatória", anchors[0].Name)
	require.Equal(t, "https://lms.example.edu/mod/page/view.php?id=10", anchors[0].Url.String())
	require.Equal(t, "https://other.example.com/x", anchors[1].Url.String())
}

func TestNearestLabel(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fixture))
	require.NoError(t, err)

	pattern := regexp.MustCompile(`(?i)\b(semana|fase|week)\s*\d+`)

	label := NearestLabel(doc.Find("a[href='/mod/page/view.php?id=10']"), pattern)
	require.Equal(t, "Semana 2 - Estruturas de Repetição", label)

	label = NearestLabel(doc.Find("#orphan"), pattern)
	require.Equal(t, "", label)
}

func TestGetTextSkipsScripts(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fixture))
	require.NoError(t, err)
	text := GetText(doc.Find("body").Nodes[0])
	require.NotContains(t, text, "not text")
	require.Contains(t, text, "Externo")
}
