package document

// NewSampleDocument returns the poster new accounts start from: the default
// axis with a handful of events and periods in both period styles.
func NewSampleDocument() *Document {
	doc := Defaults()

	doc.AddPeriod(PeriodInput{
		Title:     "Belle Époque",
		Start:     ptr(1900.0),
		End:       ptr(1914.0),
		FillColor: "#fde68a",
	})
	doc.AddPeriod(PeriodInput{
		Title:     "Première Guerre mondiale",
		Start:     ptr(1914.0),
		End:       ptr(1918.0),
		FillColor: "#fca5a5",
	})
	doc.AddPeriod(PeriodInput{
		Title:          "Entre-deux-guerres",
		Start:          ptr(1918.0),
		End:            ptr(1939.0),
		Style:          PeriodStyleLine,
		TitleAlignment: AlignTop,
	})
	doc.AddPeriod(PeriodInput{
		Title:     "Seconde Guerre mondiale",
		Start:     ptr(1939.0),
		End:       ptr(1945.0),
		FillColor: "#fca5a5",
	})
	doc.AddPeriod(PeriodInput{
		Title:          "Guerre froide",
		Start:          ptr(1947.0),
		End:            ptr(1991.0),
		Style:          PeriodStyleLine,
		TitleAlignment: AlignMiddle,
		Thickness:      6,
	})

	doc.AddEvent(EventInput{Title: "Premier vol motorisé", Value: ptr(1903.0)})
	doc.AddEvent(EventInput{Title: "Krach boursier", Value: ptr(1929.0), Detail: "Début de la Grande Dépression."})
	doc.AddEvent(EventInput{Title: "Premier pas sur la Lune", Value: ptr(1969.0), BackgroundColor: "#e0f2fe"})
	doc.AddEvent(EventInput{Title: "Chute du mur de Berlin", Value: ptr(1989.0)})
	doc.AddEvent(EventInput{Title: "Naissance du Web", Value: ptr(1991.0), Width: 140})

	return &doc
}

func ptr[T any](v T) *T { return &v }
